// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapChains(t *testing.T) {
	root := errors.New("403: forbidden")
	err := fmt.Errorf("failed to copy disk: %w", &ResourceCreationError{
		Resource: "evidence-disk",
		Cause:    &OperationFailedError{Operation: "disk.insert", Cause: root},
	})

	var creation *ResourceCreationError
	require.ErrorAs(t, err, &creation)
	assert.Equal(t, "evidence-disk", creation.Resource)

	var op *OperationFailedError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "disk.insert", op.Operation)

	assert.ErrorIs(t, err, root)
}

func TestNotFoundScope(t *testing.T) {
	withScope := &ResourceNotFoundError{Resource: "fake-disk", Scope: "fake-project"}
	assert.Contains(t, withScope.Error(), "fake-disk")
	assert.Contains(t, withScope.Error(), "fake-project")

	withoutScope := &ResourceNotFoundError{Resource: "fake-disk"}
	assert.NotContains(t, withoutScope.Error(), "in ")
}

func TestMachineTypeLookupError(t *testing.T) {
	err := &MachineTypeLookupError{CPUCores: 666, MemoryMB: 666}
	assert.Contains(t, err.Error(), "666")

	var lookup *MachineTypeLookupError
	assert.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &lookup)
}

func TestTransferErrors(t *testing.T) {
	cause := errors.New("copy aborted by the service")
	exec := &TransferExecutionError{Subject: "snap", Status: "aborted", Cause: cause}
	assert.ErrorIs(t, exec, cause)
	assert.Contains(t, exec.Error(), "aborted")

	setup := &TransferCreationError{Subject: "snap", Cause: cause}
	assert.ErrorIs(t, setup, cause)
}
