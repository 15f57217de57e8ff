// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PacketPilot Contributors

package provider

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	pperr "github.com/packetpilot/sidecar/pkg/errors"
)

// RetryRecorder is notified once per retried attempt. The orchestration
// loop's state satisfies it so retries are visible in the loop trace.
type RetryRecorder interface {
	RecordRetry()
}

// RetryPolicy controls the exponential backoff between attempts. The delay
// before retry k is min(MaxDelay, BaseDelay*2^(k-1)) scaled by a uniform
// jitter factor in [0.8, 1.2).
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy mirrors the config defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   400 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		MaxAttempts: 3,
	}
}

// RetryClient wraps a Client with transient-failure retries. Auth and quota
// errors are never retried; neither is anything the classifier marks
// non-retryable.
type RetryClient struct {
	inner  Client
	policy RetryPolicy
	log    *slog.Logger

	// Test seams.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewRetryClient wraps inner with the given policy.
func NewRetryClient(inner Client, policy RetryPolicy, log *slog.Logger) *RetryClient {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryClient{
		inner:  inner,
		policy: policy,
		log:    log,
		sleep:  sleepCtx,
		jitter: func() float64 { return 0.8 + 0.4*rand.Float64() },
	}
}

// Complete calls the inner client, retrying transient failures. rec may be
// nil when no caller is tracking retries.
func (r *RetryClient) Complete(ctx context.Context, req ChatRequest, operation string, rec RetryRecorder) (*Completion, error) {
	var out *Completion
	err := r.run(ctx, operation, rec, func() error {
		var callErr error
		out, callErr = r.inner.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream opens a token stream, retrying open-time transient failures.
// Mid-stream failures are not retried; by then partial output may already
// have reached the caller.
func (r *RetryClient) Stream(ctx context.Context, req ChatRequest, operation string, rec RetryRecorder) (<-chan StreamEvent, error) {
	var out <-chan StreamEvent
	err := r.run(ctx, operation, rec, func() error {
		var callErr error
		out, callErr = r.inner.Stream(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RetryClient) run(ctx context.Context, operation string, rec RetryRecorder, call func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !pperr.IsRetryable(lastErr) || attempt == r.policy.MaxAttempts {
			return lastErr
		}

		if rec != nil {
			rec.RecordRetry()
		}

		delay := r.delayFor(attempt)
		r.log.WarnContext(ctx, "provider call failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", lastErr)

		if err := r.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	return lastErr
}

// delayFor computes the backoff before retry number attempt. The cap
// applies before jitter so the scheduled delay can exceed MaxDelay by at
// most the jitter factor.
func (r *RetryClient) delayFor(attempt int) time.Duration {
	delay := r.policy.BaseDelay << (attempt - 1)
	if delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}
	return time.Duration(float64(delay) * r.jitter())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
