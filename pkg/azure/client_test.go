// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package azure

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDiskID = "/subscriptions/sub-1/resourceGroups/evidence-rg/providers/Microsoft.Compute/disks/disk1"

func TestResourceGroupOf(t *testing.T) {
	group, err := resourceGroupOf(testDiskID)
	require.NoError(t, err)
	assert.Equal(t, "evidence-rg", group)

	// ARM IDs are matched case-insensitively on the segment keys.
	group, err = resourceGroupOf(strings.ToUpper(testDiskID))
	require.NoError(t, err)
	assert.Equal(t, "EVIDENCE-RG", group)

	_, err = resourceGroupOf("/subscriptions/sub-1")
	assert.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	notFound := &azcore.ResponseError{StatusCode: http.StatusNotFound}
	assert.True(t, isNotFound(notFound))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", notFound)))
	assert.False(t, isNotFound(&azcore.ResponseError{StatusCode: http.StatusConflict}))
	assert.False(t, isNotFound(fmt.Errorf("plain")))
}
