// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package scripts carries the startup script run on analysis VMs and the
// substitution of its package-list placeholder.
package scripts

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

//go:embed startup.sh
var startupScript string

// PackagesPlaceholder is the literal token replaced by the space-joined
// package list. Script exit-code semantics are the VM image's business.
const PackagesPlaceholder = "${packages[@]}"

// DefaultPackages is the forensic toolchain installed when the caller does
// not supply its own list.
var DefaultPackages = []string{
	"binutils",
	"docker-explorer-tools",
	"htop",
	"jq",
	"libbde-tools",
	"libfsapfs-utils",
	"libtsk-dev",
	"ncdu",
	"sleuthkit",
}

// StartupScriptEnv overrides the embedded script with a caller-provided
// file, matching the original operator workflow.
const StartupScriptEnv = "STARTUP_SCRIPT"

// Startup returns the startup script with the package placeholder
// substituted. packages nil means DefaultPackages.
func Startup(packages []string) (string, error) {
	script := startupScript
	if path := os.Getenv(StartupScriptEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read startup script %s: %w", path, err)
		}
		script = string(raw)
	}
	if len(packages) == 0 {
		packages = DefaultPackages
	}
	return strings.ReplaceAll(script, PackagesPlaceholder, strings.Join(packages, " ")), nil
}

// CustomData returns the startup script base64-encoded for providers that
// take custom data in that form.
func CustomData(packages []string) (string, error) {
	script, err := Startup(packages)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(script)), nil
}
