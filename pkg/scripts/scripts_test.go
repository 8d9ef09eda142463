// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package scripts

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartupSubstitutesPackages(t *testing.T) {
	script, err := Startup([]string{"sleuthkit", "plaso-tools"})
	require.NoError(t, err)
	assert.Contains(t, script, "apt-get install -y sleuthkit plaso-tools")
	assert.NotContains(t, script, PackagesPlaceholder)
}

func TestStartupDefaultPackages(t *testing.T) {
	script, err := Startup(nil)
	require.NoError(t, err)
	assert.Contains(t, script, "sleuthkit")
	assert.Contains(t, script, "libbde-tools")
	assert.NotContains(t, script, PackagesPlaceholder)
}

func TestStartupFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\ninstall ${packages[@]}\n"), 0o600))
	t.Setenv(StartupScriptEnv, path)

	script, err := Startup([]string{"jq"})
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\ninstall jq\n", script)
}

func TestStartupFileOverrideMissing(t *testing.T) {
	t.Setenv(StartupScriptEnv, filepath.Join(t.TempDir(), "nope.sh"))
	_, err := Startup(nil)
	assert.Error(t, err)
}

func TestCustomData(t *testing.T) {
	encoded, err := CustomData([]string{"jq"})
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "apt-get install -y jq")
}
