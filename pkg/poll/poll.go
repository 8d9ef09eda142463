// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package poll implements the blocking await primitive used for every
// asynchronous control-plane operation in the pipeline.
//
// The loop is deliberately unbounded: the pipeline has no timeout or
// cancellation of its own, and a caller that aborts through the context
// gets its context error back without any rollback of resources the
// operation may already have created.
package poll

import (
	"context"
	"time"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

// Status is the coarse state of an asynchronous operation.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusDone:
		return "DONE"
	case StatusFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further polling can change the status.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

// Operation is a handle to a server-side task. Poll re-queries the current
// status; on StatusFailed it returns the provider's error payload as err.
// Result is only meaningful once Poll has reported StatusDone.
type Operation[T any] interface {
	Poll(ctx context.Context) (Status, error)
	Result(ctx context.Context) (T, error)
}

// DefaultInterval matches the provider-recommended status query cadence.
const DefaultInterval = 5 * time.Second

// Poller blocks until an Operation reaches a terminal status.
type Poller struct {
	Interval time.Duration
	// Sleep is replaceable in tests. nil means a real context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Poller with the default 5s interval.
func New() *Poller {
	return &Poller{Interval: DefaultInterval}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

// Await polls op until it is terminal and returns its result. A failed
// operation is reported as *errs.OperationFailedError wrapping the provider
// error. name identifies the operation in the error.
func Await[T any](ctx context.Context, p *Poller, name string, op Operation[T]) (T, error) {
	var zero T
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	for {
		status, err := op.Poll(ctx)
		if err != nil {
			return zero, &errs.OperationFailedError{Operation: name, Cause: err}
		}
		if status == StatusFailed {
			// Poll contract: StatusFailed without err means the provider
			// reported failure with no payload.
			_, resErr := op.Result(ctx)
			return zero, &errs.OperationFailedError{Operation: name, Cause: resErr}
		}
		if status == StatusDone {
			res, err := op.Result(ctx)
			if err != nil {
				return zero, &errs.OperationFailedError{Operation: name, Cause: err}
			}
			return res, nil
		}
		if err := p.sleep(ctx, interval); err != nil {
			return zero, err
		}
	}
}
