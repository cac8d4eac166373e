package usecase

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"busreg.io/stager/internal/domain"
	apperrors "busreg.io/stager/internal/pkg/errors"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/stagingapi"
)

// RetryPolicy bounds a poll loop.
type RetryPolicy struct {
	// Interval is waited before every query, the first one included.
	Interval time.Duration
	// MaxAttempts bounds answers that are neither retryable nor complete.
	MaxAttempts int
	// MaxNotReady caps retryable answers; 0 means unlimited.
	MaxNotReady int
	// Retryable reports errors that cost no attempt.
	Retryable func(error) bool
}

// DefaultRetryPolicy waits 30s between queries and allows 4 attempts;
// "too early" answers are free.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Interval:    30 * time.Second,
		MaxAttempts: 4,
		Retryable:   stagingapi.IsNotReady,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return stagingapi.IsNotReady(err)
	}
	return p.Retryable(err)
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// TimerSleep is the default Sleeper.
func TimerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller queries staging until the batch is terminal or the budget runs out.
type Poller struct {
	api    StagingAPI
	policy RetryPolicy
	sleep  Sleeper
}

// NewPoller creates a Poller; a nil sleep uses TimerSleep.
func NewPoller(api StagingAPI, policy RetryPolicy, sleep Sleeper) *Poller {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = TimerSleep
	}
	return &Poller{api: api, policy: policy, sleep: sleep}
}

// PollStaged waits for the batch to finish staging.
func (p *Poller) PollStaged(ctx context.Context, stage *domain.Stage) (domain.Batch, error) {
	return poll(ctx, p, stage.ID, func(ctx context.Context) (domain.Batch, bool, error) {
		resp, err := p.api.GetStaged(ctx, stage.ID)
		if err != nil {
			return domain.Batch{}, false, err
		}
		b := resp.Batch(stage.ID)
		return b, b.Status.Terminal() || b.InvalidFile != "", nil
	})
}

// FetchReport waits for the batch's final report.
func (p *Poller) FetchReport(ctx context.Context, stage *domain.Stage) (domain.Report, error) {
	return poll(ctx, p, stage.ID, func(ctx context.Context) (domain.Report, bool, error) {
		resp, err := p.api.GetReport(ctx, stage.ID)
		if stagingapi.IsNotFound(err) {
			return domain.Report{}, false, apperrors.Wrap(err, apperrors.CodeReportNotFound, apperrors.MsgReportUnavailable, http.StatusNotFound)
		}
		if err != nil {
			return domain.Report{}, false, err
		}
		if !resp.Completed() {
			return domain.Report{}, false, nil
		}
		return *resp.Report, true, nil
	})
}

func poll[T any](ctx context.Context, p *Poller, stageID string, query func(context.Context) (T, bool, error)) (T, error) {
	var zero T
	log := logger.FromContext(ctx).With(logger.StageID(stageID))

	attempts, notReady := 0, 0
	for {
		if err := p.sleep(ctx, p.policy.Interval); err != nil {
			return zero, err
		}

		v, done, err := query(ctx)
		if err != nil {
			if !p.policy.retryable(err) {
				log.Warn("Poll aborted", zap.Int("attempt", attempts+1), zap.Error(err))
				return zero, err
			}
			notReady++
			log.Debug("Batch not ready", zap.Int("not_ready", notReady))
			if p.policy.MaxNotReady > 0 && notReady > p.policy.MaxNotReady {
				return zero, apperrors.ErrStagingFailedf(stageID, attempts+notReady)
			}
			continue
		}
		if done {
			log.Debug("Poll completed", zap.Int("attempt", attempts+1), zap.Int("not_ready", notReady))
			return v, nil
		}

		attempts++
		log.Debug("Batch still pending", zap.Int("attempt", attempts))
		if attempts >= p.policy.MaxAttempts {
			log.Warn("Poll budget exhausted", zap.Int("attempts", attempts))
			return zero, apperrors.ErrStagingFailedf(stageID, attempts)
		}
	}
}
