package dispense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"meddispense/m/domain"
	"meddispense/m/internal/notify"
	"meddispense/m/internal/robot"
)

// MessageTimeLayout is the timestamp format used in outcome messages.
const MessageTimeLayout = "2006-01-02 15:04:05"

// Catalog resolves a medication to its color marker.
type Catalog interface {
	Lookup(ctx context.Context, name, dosage string) (string, bool, error)
}

// Log records confirmed dispenses.
type Log interface {
	Record(ctx context.Context, name, dosage string, at time.Time) (domain.DispenseEvent, error)
}

// Workflow runs dispense batches against the single robot.
type Workflow struct {
	catalog   Catalog
	log       Log
	publisher notify.Publisher
	dial      robot.Dialer
	robotCfg  robot.Config
	logger    *zap.Logger

	// One arm, one batch at a time.
	lock *semaphore.Weighted
	now  func() time.Time
}

// New constructs a Workflow. A nil publisher disables event fan-out.
func New(catalog Catalog, log Log, publisher notify.Publisher, dial robot.Dialer, robotCfg robot.Config, logger *zap.Logger) *Workflow {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Workflow{
		catalog:   catalog,
		log:       log,
		publisher: publisher,
		dial:      dial,
		robotCfg:  robotCfg,
		logger:    logger,
		lock:      semaphore.NewWeighted(1),
		now:       time.Now,
	}
}

// Dispense processes items in order and returns one outcome message per
// item or unit. Unknown medications, unrecognized colors, vision faults and
// empty picks only produce messages. A non-nil error means the batch stopped
// early: the robot could not be opened, a move failed or the link dropped.
// The messages gathered up to that point are still returned.
func (w *Workflow) Dispense(ctx context.Context, items []domain.RequestItem) ([]string, error) {
	logger := w.logger.With(zap.String("batch_id", uuid.NewString()))

	if err := w.lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for robot: %w", err)
	}
	defer w.lock.Release(1)

	// Once the arm is ours the batch runs to completion; each robot
	// command is still bounded by the client's timeout.
	ctx = context.WithoutCancel(ctx)

	logger.Info("dispense batch started", zap.Int("items", len(items)))
	session, err := robot.Open(ctx, w.dial, w.robotCfg, logger)
	if err != nil {
		logger.Error("robot session failed to open", zap.Error(err))
		return nil, err
	}
	defer func() { _ = session.Close() }()

	results, err := w.run(ctx, session, items, logger)
	if err != nil {
		logger.Error("dispense batch aborted", zap.Error(err), zap.Int("messages", len(results)))
		return results, err
	}
	logger.Info("dispense batch finished", zap.Int("messages", len(results)))
	return results, nil
}

func (w *Workflow) run(ctx context.Context, session *robot.Session, items []domain.RequestItem, logger *zap.Logger) ([]string, error) {
	var results []string
	observing := false

	for _, item := range items {
		marker, found, err := w.catalog.Lookup(ctx, item.MedicationName, item.Dosage)
		if err != nil {
			logger.Error("catalog lookup failed", zap.String("medication", item.MedicationName), zap.Error(err))
			results = append(results, fmt.Sprintf("Could not look up %s %s: %v", item.MedicationName, item.Dosage, err))
			continue
		}
		if !found {
			results = append(results, fmt.Sprintf("Medication '%s' %s not found in database.", item.MedicationName, item.Dosage))
			continue
		}
		color := robot.ParseColor(marker)
		if !color.Recognized() {
			results = append(results, fmt.Sprintf("Color marker '%s' is not recognized.", marker))
			continue
		}

		for unit := 0; unit < item.Quantity; unit++ {
			if !observing {
				if err := session.MoveTo(ctx, w.robotCfg.ObservationPose); err != nil {
					return results, err
				}
				observing = true
			}

			pick, err := session.AttemptPick(ctx, w.robotCfg.Workspace, color)
			if err != nil {
				results = append(results, fmt.Sprintf("Vision pick failed for %s %s: %v", item.MedicationName, item.Dosage, err))
				var connErr *robot.ConnectionError
				if errors.As(err, &connErr) {
					return results, err
				}
				continue
			}
			if !pick.Found {
				results = append(results, fmt.Sprintf("No %s %s container found.", item.MedicationName, item.Dosage))
				continue
			}

			msg, stamp := w.complete(ctx, item, logger)
			if err := session.PlaceAndRelease(ctx, w.robotCfg.PlacePose); err != nil {
				results = append(results, fmt.Sprintf("%s %s picked at %s but placement failed: %v", item.MedicationName, item.Dosage, stamp, err))
				return results, err
			}
			results = append(results, msg)
			if err := session.MoveTo(ctx, w.robotCfg.ObservationPose); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

// complete records a confirmed pick and returns its outcome message along
// with the timestamp it carries.
func (w *Workflow) complete(ctx context.Context, item domain.RequestItem, logger *zap.Logger) (string, string) {
	at := w.now()
	stamp := at.Format(MessageTimeLayout)

	event, err := w.log.Record(ctx, item.MedicationName, item.Dosage, at)
	if err != nil {
		logger.Error("dispense not recorded", zap.String("medication", item.MedicationName), zap.String("dosage", item.Dosage), zap.Error(err))
		return fmt.Sprintf("%s %s dispensed at %s but could not be recorded: %v", item.MedicationName, item.Dosage, stamp, err), stamp
	}
	logger.Info("medication dispensed",
		zap.Int64("event_id", event.ID),
		zap.String("medication", item.MedicationName),
		zap.String("dosage", item.Dosage))

	if err := w.publisher.Publish(ctx, event); err != nil {
		logger.Warn("dispense event not published", zap.Int64("event_id", event.ID), zap.Error(err))
	}
	return fmt.Sprintf("%s %s dispensed at %s. successfully.", item.MedicationName, item.Dosage, stamp), stamp
}
