package jobs

import (
	"context"
	"errors"
	"time"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
)

const (
	DefaultMaxAttempts = 60
	DefaultInterval    = 2 * time.Second
)

// Poller repeatedly queries a job until it reaches a terminal state, with a
// fixed interval and attempt budget. The worst case is roughly
// MaxAttempts*Interval plus the latency of the in-flight call.
type Poller struct {
	Client      ProviderClient
	MaxAttempts int
	Interval    time.Duration
	Logger      *infra.Logger

	// wait is swapped in tests to avoid real sleeps.
	wait func(ctx context.Context, d time.Duration) error
}

// NewPoller builds a poller, substituting defaults for non-positive limits.
func NewPoller(client ProviderClient, maxAttempts int, interval time.Duration, logger *infra.Logger) *Poller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval < 0 {
		interval = DefaultInterval
	}
	return &Poller{
		Client:      client,
		MaxAttempts: maxAttempts,
		Interval:    interval,
		Logger:      infra.LoggerOrDiscard(logger),
		wait:        sleepContext,
	}
}

// Poll returns the Ready status of job, or an error classified as
// JobFailed, ContentModerated, JobTimeout, TransportError (after the last
// attempt) or whatever non-transport error GetStatus reported.
func (p *Poller) Poll(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	logger := infra.LoggerOrDiscard(p.Logger)
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	wait := p.wait
	if wait == nil {
		wait = sleepContext
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.JobStatus{}, domain.NewError(domain.CodeTransport, "polling cancelled", err)
		}
		last := attempt == maxAttempts

		status, err := p.Client.GetStatus(ctx, job)
		if err != nil {
			if !errors.Is(err, domain.ErrTransport) || last {
				logger.Warn().Err(err).
					Str("job_id", job.ID).
					Str("kind", string(job.Kind)).
					Int("attempt", attempt).
					Msg("jobs: status check failed")
				return domain.JobStatus{}, err
			}
			logger.Debug().Err(err).
				Str("job_id", job.ID).
				Int("attempt", attempt).
				Msg("jobs: transient status failure, retrying")
			if err := wait(ctx, p.Interval); err != nil {
				return domain.JobStatus{}, domain.NewError(domain.CodeTransport, "polling cancelled", err)
			}
			continue
		}

		logger.Debug().
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Str("state", string(status.State)).
			Int("attempt", attempt).
			Msg("jobs: polled status")

		switch {
		case status.State == domain.JobStateReady:
			return status, nil
		case status.State == domain.JobStateFailed:
			failure := domain.Errorf(domain.CodeJobFailed, "provider reported job %s as failed", job.ID)
			failure.Raw = status.Raw
			return status, failure
		case status.State.Moderated():
			moderated := domain.NewError(domain.CodeContentModerated, moderationMessage(status.State), nil)
			moderated.Raw = status.Raw
			return status, moderated
		}

		if last {
			break
		}
		if err := wait(ctx, p.Interval); err != nil {
			return domain.JobStatus{}, domain.NewError(domain.CodeTransport, "polling cancelled", err)
		}
	}

	logger.Warn().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int("attempts", maxAttempts).
		Msg("jobs: polling budget exhausted")
	return domain.JobStatus{}, domain.Errorf(domain.CodeJobTimeout, "job %s did not finish after %d status checks", job.ID, maxAttempts)
}

func moderationMessage(state domain.JobState) string {
	if state == domain.JobStateModeratedRequest {
		return "The request was flagged by content moderation"
	}
	return "The generated content was flagged by content moderation"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
