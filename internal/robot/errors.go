package robot

import "fmt"

// ConnectionError means the controller could not be reached, the link broke,
// or the arm could not be made ready (calibration, tool setup).
type ConnectionError struct {
	Address string
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("robot %s: %s: %v", e.Address, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MotionError is a failed move: unreachable pose or hardware fault.
type MotionError struct {
	Op   string
	Pose Pose
	Err  error
}

func (e *MotionError) Error() string {
	return fmt.Sprintf("%s to %s: %v", e.Op, e.Pose, e.Err)
}

func (e *MotionError) Unwrap() error { return e.Err }

// CommandError is a command the controller answered with a KO status.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected by controller", e.Command)
	}
	return fmt.Sprintf("%s rejected by controller: %s", e.Command, e.Message)
}
