package advisor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MikeSquared-Agency/Trajectory/internal/hermes"
)

// OutcomeConsumer is the durable consumer name for outcome events.
const OutcomeConsumer = "trajectory-outcomes"

// SetupSubscriptions attaches the outcome consumer. It is a no-op without NATS.
func (s *Service) SetupSubscriptions(ctx context.Context) error {
	if s.hermes == nil {
		return nil
	}
	return s.hermes.Consume(ctx, OutcomeConsumer, hermes.SubjectOutcomeRecorded, func(_ string, data []byte) error {
		return s.handleOutcome(ctx, data)
	})
}

// handleOutcome only returns an error when redelivery could succeed.
func (s *Service) handleOutcome(ctx context.Context, data []byte) error {
	var evt hermes.OutcomeRecordedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.logger.Warn("invalid outcome event", "error", err)
		s.metrics.outcomes.WithLabelValues("invalid").Inc()
		return nil
	}

	_, err := s.RecordOutcome(ctx, evt.StudentID, evt.Actual)
	switch {
	case err == nil:
		s.metrics.outcomes.WithLabelValues("applied").Inc()
		s.logger.Info("outcome applied", "student_id", evt.StudentID, "actual", evt.Actual, "source", evt.Source)
		return nil
	case errors.Is(err, ErrStudentNotFound):
		s.metrics.outcomes.WithLabelValues("unknown_student").Inc()
		s.logger.Warn("outcome for unknown student", "student_id", evt.StudentID)
		return nil
	case errors.Is(err, ErrInvalidOutcome):
		s.metrics.outcomes.WithLabelValues("invalid").Inc()
		s.logger.Warn("outcome out of range", "student_id", evt.StudentID, "actual", evt.Actual)
		return nil
	default:
		s.metrics.outcomes.WithLabelValues("error").Inc()
		return err
	}
}
