// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

func TestSnapshotAlreadyGone(t *testing.T) {
	// The orchestrator wraps a cleanup failure in a creation error; a
	// not-found cause on the deletion error means the snapshot was gone
	// already and the run is treated as complete.
	gone := &errs.ResourceCreationError{
		Resource: "fake-disk",
		Cause: &errs.ResourceDeletionError{
			Resource: "fake-disk-20220101000000",
			Cause: &errs.ResourceNotFoundError{
				Resource: "fake-disk-20220101000000",
				Scope:    "fake-source-project",
				Cause:    errors.New("404"),
			},
		},
	}
	assert.True(t, snapshotAlreadyGone(gone))

	// A cleanup failure with any other cause still fails the run.
	stuck := &errs.ResourceCreationError{
		Resource: "fake-disk",
		Cause: &errs.ResourceDeletionError{
			Resource: "fake-disk-20220101000000",
			Cause:    errors.New("409 snapshot in use"),
		},
	}
	assert.False(t, snapshotAlreadyGone(stuck))

	// Not-found anywhere else on the chain is a genuine fault, not a
	// completed cleanup.
	missing := &errs.ResourceCreationError{
		Resource: "fake-disk",
		Cause:    &errs.ResourceNotFoundError{Resource: "fake-disk", Scope: "fake-source-project"},
	}
	assert.False(t, snapshotAlreadyGone(missing))

	assert.False(t, snapshotAlreadyGone(nil))
	assert.False(t, snapshotAlreadyGone(errors.New("plain")))
}
