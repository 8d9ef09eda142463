// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

// fakeOperation replays a scripted status sequence.
type fakeOperation struct {
	statuses []Status
	errAt    int
	err      error
	result   string
	calls    int
}

func (f *fakeOperation) Poll(context.Context) (Status, error) {
	i := f.calls
	f.calls++
	if f.err != nil && i == f.errAt {
		return StatusFailed, f.err
	}
	if i >= len(f.statuses) {
		return StatusDone, nil
	}
	return f.statuses[i], nil
}

func (f *fakeOperation) Result(context.Context) (string, error) {
	return f.result, nil
}

func newTestPoller(slept *int) *Poller {
	return &Poller{
		Interval: time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept++
			return ctx.Err()
		},
	}
}

func TestAwaitPollsUntilDone(t *testing.T) {
	var slept int
	op := &fakeOperation{
		statuses: []Status{StatusPending, StatusPending, StatusRunning, StatusDone},
		result:   "done",
	}

	res, err := Await[string](context.Background(), newTestPoller(&slept), "test.op", op)
	require.NoError(t, err)
	assert.Equal(t, "done", res)
	assert.Equal(t, 4, op.calls)
	// One sleep per non-terminal poll.
	assert.Equal(t, 3, slept)
}

func TestAwaitWrapsFailure(t *testing.T) {
	var slept int
	cause := errors.New("QUOTA_EXCEEDED: quota exceeded")
	op := &fakeOperation{
		statuses: []Status{StatusRunning},
		errAt:    1,
		err:      cause,
	}

	_, err := Await[string](context.Background(), newTestPoller(&slept), "disk.insert", op)
	var opErr *errs.OperationFailedError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "disk.insert", opErr.Operation)
	assert.ErrorIs(t, err, cause)
}

func TestAwaitContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var slept int
	op := &fakeOperation{statuses: []Status{StatusPending, StatusPending}}
	_, err := Await[string](ctx, newTestPoller(&slept), "test.op", op)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
