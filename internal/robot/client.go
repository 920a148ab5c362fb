package robot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const maxFrameSize = 1 << 20

// PickResult is the outcome of one vision pick.
type PickResult struct {
	Found bool
	Shape string
	Color string
}

// Controller is the command set a Session drives.
type Controller interface {
	Calibrate(ctx context.Context) error
	UpdateTool(ctx context.Context) error
	MovePose(ctx context.Context, pose Pose) error
	VisionPick(ctx context.Context, workspace string, heightOffset float64, color Color) (PickResult, error)
	PlaceFromPose(ctx context.Context, pose Pose) error
	GraspWithTool(ctx context.Context) error
	MoveToHome(ctx context.Context) error
	SetLearningMode(ctx context.Context, enabled bool) error
	Close() error
}

// Dialer connects to the controller at address.
type Dialer func(ctx context.Context, address string) (Controller, error)

// TCPDialer returns a Dialer that speaks the controller's TCP protocol.
// timeout bounds the connect and every single command.
func TCPDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, address string) (Controller, error) {
		c, err := Dial(ctx, address, timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type request struct {
	Command string `json:"command"`
	Params  []any  `json:"param_list"`
}

type answer struct {
	Command string            `json:"command"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Params  []json.RawMessage `json:"list_ret_param"`
}

// Client is a TCP connection to one controller. Commands are serialized.
type Client struct {
	address string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	broken error
}

// Dial connects to address, adding DefaultPort when none is given.
func Dial(ctx context.Context, address string, timeout time.Duration) (*Client, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultPort)
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &ConnectionError{Address: address, Op: "connect", Err: err}
	}
	return &Client{address: address, timeout: timeout, conn: conn}, nil
}

// Calibrate runs the automatic calibration.
func (c *Client) Calibrate(ctx context.Context) error {
	_, err := c.call(ctx, "CALIBRATE", "AUTO")
	return err
}

// UpdateTool makes the controller detect the mounted tool.
func (c *Client) UpdateTool(ctx context.Context) error {
	_, err := c.call(ctx, "UPDATE_TOOL")
	return err
}

func (c *Client) MovePose(ctx context.Context, pose Pose) error {
	_, err := c.call(ctx, "MOVE_POSE", pose.params()...)
	return err
}

// VisionPick looks for an object of the given color in workspace and grasps
// it when one is found.
func (c *Client) VisionPick(ctx context.Context, workspace string, heightOffset float64, color Color) (PickResult, error) {
	ret, err := c.call(ctx, "VISION_PICK", workspace, heightOffset, "ANY", color.String())
	if err != nil {
		return PickResult{}, err
	}
	if len(ret) < 3 {
		return PickResult{}, &CommandError{Command: "VISION_PICK", Message: fmt.Sprintf("expected 3 return values, got %d", len(ret))}
	}
	var res PickResult
	if err := json.Unmarshal(ret[0], &res.Found); err != nil {
		return PickResult{}, &CommandError{Command: "VISION_PICK", Message: "malformed found flag"}
	}
	_ = json.Unmarshal(ret[1], &res.Shape)
	_ = json.Unmarshal(ret[2], &res.Color)
	return res, nil
}

func (c *Client) PlaceFromPose(ctx context.Context, pose Pose) error {
	_, err := c.call(ctx, "PLACE_FROM_POSE", pose.params()...)
	return err
}

func (c *Client) GraspWithTool(ctx context.Context) error {
	_, err := c.call(ctx, "GRASP_WITH_TOOL")
	return err
}

func (c *Client) MoveToHome(ctx context.Context) error {
	_, err := c.call(ctx, "MOVE_TO_HOME_POSE")
	return err
}

func (c *Client) SetLearningMode(ctx context.Context, enabled bool) error {
	_, err := c.call(ctx, "SET_LEARNING_MODE", enabled)
	return err
}

// Close closes the socket. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if c.broken == nil {
		c.broken = net.ErrClosed
	}
	return err
}

func (c *Client) call(ctx context.Context, command string, params ...any) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, &ConnectionError{Address: c.address, Op: command, Err: c.broken}
	}
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(request{Command: command, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", command, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	ans, err := c.roundTrip(payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		// The stream position is unknown after a partial exchange.
		c.broken = err
		return nil, &ConnectionError{Address: c.address, Op: command, Err: err}
	}
	if ans.Status != "OK" {
		return nil, &CommandError{Command: command, Message: ans.Message}
	}
	return ans.Params, nil
}

func (c *Client) roundTrip(payload []byte) (answer, error) {
	if err := writeFrame(c.conn, payload); err != nil {
		return answer{}, err
	}
	body, err := readFrame(c.conn)
	if err != nil {
		return answer{}, err
	}
	var ans answer
	if err := json.Unmarshal(body, &ans); err != nil {
		return answer{}, fmt.Errorf("decode answer: %w", err)
	}
	return ans, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	_, err := w.Write(frame)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, errors.New("frame exceeds maximum size")
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
