package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/metrics"
)

// postCommitStep runs after the primary record is stored. Steps are
// independent and never roll the record back.
type postCommitStep struct {
	name string
	run  func(ctx context.Context) error
}

// runPostCommit runs every step, retrying each up to the configured attempts.
// All failed steps are reported together as one internal error.
func (s *Service) runPostCommit(ctx context.Context, steps ...postCommitStep) error {
	var failed []error
	for _, step := range steps {
		if err := s.runStep(ctx, step); err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return apperr.Internal("record stored but follow-up steps failed", errors.Join(failed...))
}

func (s *Service) runStep(ctx context.Context, step postCommitStep) error {
	var err error
	for attempt := 1; attempt <= s.postCommitAttempts; attempt++ {
		if err = step.run(ctx); err == nil {
			return nil
		}
		metrics.PostCommitStepFailuresTotal.WithLabelValues(step.name).Inc()
		s.logger.Warn("post-commit step failed", "step", step.name, "attempt", attempt, "err", err)
		if attempt == s.postCommitAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(s.postCommitBackoff * time.Duration(attempt)):
		}
	}
	return err
}
