// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package gcp

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestGrammar(t *testing.T) {
	assert.NoError(t, Grammar.Validate("fake-disk"))
	assert.NoError(t, Grammar.Validate(strings.Repeat("a", 63)))
	assert.Error(t, Grammar.Validate(strings.Repeat("a", 64)))
	assert.Error(t, Grammar.Validate("Fake-Disk"))
	assert.Error(t, Grammar.Validate("9starts-with-digit"))
	assert.Error(t, Grammar.Validate("trailing-"))
}

func TestZoneOf(t *testing.T) {
	assert.Equal(t, "us-central1-a",
		zoneOf("https://www.googleapis.com/compute/v1/projects/p/zones/us-central1-a"))
	assert.Equal(t, "us-central1-a", zoneOf("us-central1-a"))
}

func TestDiskTypeURL(t *testing.T) {
	assert.Equal(t, "projects/p/zones/z/diskTypes/pd-ssd", diskTypeURL("p", "z", "pd-ssd"))
	// Full URLs pass through.
	full := "projects/other/zones/z/diskTypes/pd-standard"
	assert.Equal(t, full, diskTypeURL("p", "z", full))
}

func TestIsStatus(t *testing.T) {
	conflict := &googleapi.Error{Code: 409, Message: "alreadyExists"}
	assert.True(t, isStatus(conflict, 409))
	assert.False(t, isStatus(conflict, 404))
	assert.True(t, isStatus(fmt.Errorf("wrapped: %w", conflict), 409))
	assert.False(t, isStatus(fmt.Errorf("plain"), 409))
}
