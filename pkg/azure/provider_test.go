// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package azure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
)

func testProvider() *Provider {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewProvider("sub-1", nil, logrus.NewEntry(logger))
}

func TestDiskGrammar(t *testing.T) {
	assert.NoError(t, DiskGrammar.Validate("evidence_disk_1"))
	assert.NoError(t, DiskGrammar.Validate(strings.Repeat("a", 80)))
	assert.Error(t, DiskGrammar.Validate(strings.Repeat("a", 81)))
	assert.Error(t, DiskGrammar.Validate("has-dash"))
	assert.Error(t, DiskGrammar.Validate(""))
}

func TestSnapshotGrammar(t *testing.T) {
	assert.NoError(t, SnapshotGrammar.Validate("disk1_20210722123456"))
	assert.NoError(t, SnapshotGrammar.Validate("disk-1_snap"))
	assert.Error(t, SnapshotGrammar.Validate("_starts_with_underscore"))
	assert.Error(t, SnapshotGrammar.Validate("ends-with-"))
	assert.Error(t, SnapshotGrammar.Validate(strings.Repeat("a", 81)))
}

func TestDirectlyReachable(t *testing.T) {
	p := testProvider()
	snap := forensics.Snapshot{
		Scope:  forensics.Scope{Account: "sub-1", Group: "rg"},
		Region: "eastus",
	}

	cases := []struct {
		name string
		dst  forensics.Scope
		want bool
	}{
		{"same subscription and region", forensics.Scope{Account: "sub-1", Region: "eastus"}, true},
		{"region compared case-insensitively", forensics.Scope{Account: "sub-1", Region: "EastUS"}, true},
		{"empty destination means the snapshot's own placement", forensics.Scope{}, true},
		{"different region", forensics.Scope{Account: "sub-1", Region: "westus"}, false},
		{"different subscription", forensics.Scope{Account: "sub-2", Region: "eastus"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.DirectlyReachable(context.Background(), snap, tc.dst)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVMSizeFor(t *testing.T) {
	size, err := vmSizeFor(4, 14336)
	require.NoError(t, err)
	assert.Equal(t, "Standard_DS3_v2", size)

	size, err = vmSizeFor(16, 0)
	require.NoError(t, err)
	assert.Equal(t, "Standard_DS5_v2", size)

	_, err = vmSizeFor(666, 666)
	var lookup *errs.MachineTypeLookupError
	require.ErrorAs(t, err, &lookup)

	_, err = vmSizeFor(4, 8192)
	require.ErrorAs(t, err, &lookup)
}

func TestSnapshotDeleteError(t *testing.T) {
	snap := forensics.Snapshot{
		Name:  "gone_snap",
		Scope: forensics.Scope{Account: "sub-1", Group: "evidence-rg"},
	}

	// Deleting an absent snapshot fails; the not-found stays on the chain.
	err := snapshotDeleteError(snap, &azcore.ResponseError{StatusCode: http.StatusNotFound})
	var delErr *errs.ResourceDeletionError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, "gone_snap", delErr.Resource)
	var notFound *errs.ResourceNotFoundError
	assert.ErrorAs(t, delErr.Cause, &notFound)

	// Other failures keep their raw cause.
	err = snapshotDeleteError(snap, &azcore.ResponseError{StatusCode: http.StatusConflict})
	require.ErrorAs(t, err, &delErr)
	assert.False(t, errors.As(delErr.Cause, &notFound))
}

func TestCopyDiskParams(t *testing.T) {
	p := testProvider()
	snap := forensics.Snapshot{
		Name:       "disk1_snap",
		Scope:      forensics.Scope{Account: "sub-1", Group: "rg"},
		SourceDisk: forensics.Disk{ID: testDiskID, Name: "disk1"},
	}

	name, sku, err := p.copyDiskParams(snap, "", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "evidence_disk1_snap_"))
	assert.True(t, strings.HasSuffix(name, "_copy"))
	assert.NotContains(t, name, "-")
	assert.Equal(t, defaultDiskSKU, sku)

	// Deterministic over the same source identity.
	again, _, err := p.copyDiskParams(snap, "", "")
	require.NoError(t, err)
	assert.Equal(t, name, again)

	// Explicit names are validated, not generated.
	_, _, err = p.copyDiskParams(snap, "", "bad-name")
	var invalid *errs.InvalidNameError
	require.ErrorAs(t, err, &invalid)

	explicit, sku, err := p.copyDiskParams(snap, "Premium_LRS", "my_copy")
	require.NoError(t, err)
	assert.Equal(t, "my_copy", explicit)
	assert.Equal(t, "Premium_LRS", string(sku))
}
