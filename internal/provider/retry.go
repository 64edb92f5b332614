package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/promptline-ai/promptline/internal/logging"
	"github.com/promptline-ai/promptline/internal/memory"
)

const (
	// MaxRetries is the maximum number of retries per Propose call.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 30 * time.Second
	// RetryMaxElapsedTime is the maximum total time spent retrying.
	RetryMaxElapsedTime = 2 * time.Minute
)

// newRetryBackoff creates an exponential backoff with jitter for API
// retries. Jitter avoids thundering-herd retries and the context makes
// the wait cancellable.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

type retrying struct {
	inner Provider
	log   zerolog.Logger
}

// WithRetry wraps a provider so transient failures are retried with
// exponential backoff before surfacing to the loop. Context
// cancellation is never retried.
func WithRetry(inner Provider) Provider {
	return &retrying{
		inner: inner,
		log:   logging.Component("provider"),
	}
}

func (r *retrying) Name() string { return r.inner.Name() }

func (r *retrying) Propose(ctx context.Context, task string, steps []memory.Step) (*Proposal, error) {
	var proposal *Proposal
	attempt := 0
	op := func() error {
		attempt++
		p, err := r.inner.Propose(ctx, task, steps)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			r.log.Warn().Err(err).Int("attempt", attempt).Msg("propose failed, retrying")
			return err
		}
		proposal = p
		return nil
	}
	if err := backoff.Retry(op, newRetryBackoff(ctx)); err != nil {
		return nil, err
	}
	return proposal, nil
}
