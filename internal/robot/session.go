package robot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// parkTimeout bounds parking on Close, which must run even after the
// request context is gone.
const parkTimeout = 30 * time.Second

// Session owns one controller connection for the length of one batch.
type Session struct {
	ctrl   Controller
	cfg    Config
	logger *zap.Logger

	pose *Pose

	closeOnce sync.Once
	closeErr  error
}

// Open connects to cfg.Address, calibrates and sets up the tool. Every
// failure is a *ConnectionError; the connection is closed before returning.
func Open(ctx context.Context, dial Dialer, cfg Config, logger *zap.Logger) (*Session, error) {
	ctrl, err := dial(ctx, cfg.Address)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &ConnectionError{Address: cfg.Address, Op: "connect", Err: err}
	}

	if err := ctrl.Calibrate(ctx); err != nil {
		_ = ctrl.Close()
		return nil, &ConnectionError{Address: cfg.Address, Op: "calibrate", Err: err}
	}
	if err := ctrl.UpdateTool(ctx); err != nil {
		_ = ctrl.Close()
		return nil, &ConnectionError{Address: cfg.Address, Op: "update tool", Err: err}
	}

	logger.Info("robot session opened",
		zap.String("address", cfg.Address),
		zap.String("tool", cfg.Tool),
		zap.String("workspace", cfg.Workspace))
	return &Session{ctrl: ctrl, cfg: cfg, logger: logger}, nil
}

// Tool is the configured tool name.
func (s *Session) Tool() string { return s.cfg.Tool }

// Pose returns the last pose the arm was commanded to and reached, if known.
func (s *Session) Pose() (Pose, bool) {
	if s.pose == nil {
		return Pose{}, false
	}
	return *s.pose, true
}

// MoveTo blocks until the arm reaches pose.
func (s *Session) MoveTo(ctx context.Context, pose Pose) error {
	s.pose = nil
	if err := s.ctrl.MovePose(ctx, pose); err != nil {
		return &MotionError{Op: "move", Pose: pose, Err: err}
	}
	s.pose = &pose
	return nil
}

// AttemptPick runs one vision pick at the current pose. Found=false is a
// normal outcome. On success the arm holds the object away from the
// observation pose.
func (s *Session) AttemptPick(ctx context.Context, workspace string, color Color) (PickResult, error) {
	res, err := s.ctrl.VisionPick(ctx, workspace, s.cfg.HeightOffset, color)
	if err != nil {
		return PickResult{}, err
	}
	if res.Found {
		s.pose = nil
	}
	return res, nil
}

// PlaceAndRelease moves to pose and then operates the gripper.
// The grasp command follows the placement, matching the installed sequence.
// TODO: confirm against the gripper whether GRASP_WITH_TOOL here should be RELEASE_WITH_TOOL.
func (s *Session) PlaceAndRelease(ctx context.Context, pose Pose) error {
	s.pose = nil
	if err := s.ctrl.PlaceFromPose(ctx, pose); err != nil {
		return &MotionError{Op: "place", Pose: pose, Err: err}
	}
	if err := s.ctrl.GraspWithTool(ctx); err != nil {
		return &MotionError{Op: "grasp", Pose: pose, Err: err}
	}
	s.pose = &pose
	return nil
}

// Close parks the arm and closes the connection. Only the first call does
// any work; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), parkTimeout)
		defer cancel()

		var errs []error
		if err := s.ctrl.MoveToHome(ctx); err != nil {
			errs = append(errs, &MotionError{Op: "park", Err: err})
		}
		if err := s.ctrl.SetLearningMode(ctx, true); err != nil {
			errs = append(errs, err)
		}
		if err := s.ctrl.Close(); err != nil {
			errs = append(errs, err)
		}
		s.pose = nil
		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil {
			s.logger.Warn("robot session closed with errors", zap.Error(s.closeErr))
		} else {
			s.logger.Info("robot session closed", zap.String("address", s.cfg.Address))
		}
	})
	return s.closeErr
}
