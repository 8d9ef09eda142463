// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

const testTenant = "11111111-1111-1111-1111-111111111111"

func writeProfiles(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(CredentialsPathEnv, path)
}

func TestAzureFromEnvMissingSubscription(t *testing.T) {
	t.Setenv("AZURE_SUBSCRIPTION_ID", "")
	_, err := Azure("")
	var credErr *errs.CredentialsConfigurationError
	require.ErrorAs(t, err, &credErr)
	assert.Contains(t, credErr.Detail, "AZURE_SUBSCRIPTION_ID")
}

func TestAzureFromEnvClientSecret(t *testing.T) {
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-1")
	t.Setenv("AZURE_CLIENT_ID", "client-1")
	t.Setenv("AZURE_CLIENT_SECRET", "secret")
	t.Setenv("AZURE_TENANT_ID", testTenant)

	creds, err := Azure("")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", creds.SubscriptionID)
	assert.NotNil(t, creds.Credential)
}

func TestAzureProfile(t *testing.T) {
	writeProfiles(t, `{
		"forensics": {
			"subscriptionId": "sub-2",
			"clientId": "client-2",
			"clientSecret": "secret",
			"tenantId": "`+testTenant+`"
		}
	}`)

	creds, err := Azure("forensics")
	require.NoError(t, err)
	assert.Equal(t, "sub-2", creds.SubscriptionID)
	assert.NotNil(t, creds.Credential)
}

func TestAzureProfileMissingKey(t *testing.T) {
	writeProfiles(t, `{
		"forensics": {
			"subscriptionId": "sub-2",
			"clientId": "client-2",
			"tenantId": "`+testTenant+`"
		}
	}`)

	_, err := Azure("forensics")
	var credErr *errs.CredentialsConfigurationError
	require.ErrorAs(t, err, &credErr)
	assert.Contains(t, credErr.Detail, "clientSecret")
}

func TestAzureProfileUnknownName(t *testing.T) {
	writeProfiles(t, `{}`)
	_, err := Azure("missing")
	var credErr *errs.CredentialsConfigurationError
	require.ErrorAs(t, err, &credErr)
}

func TestAzureProfileBadJSON(t *testing.T) {
	writeProfiles(t, `not json`)
	_, err := Azure("forensics")
	var credErr *errs.CredentialsConfigurationError
	require.ErrorAs(t, err, &credErr)
}

func TestAzureProfileMissingFile(t *testing.T) {
	t.Setenv(CredentialsPathEnv, filepath.Join(t.TempDir(), "nope.json"))
	_, err := Azure("forensics")
	var credErr *errs.CredentialsConfigurationError
	require.ErrorAs(t, err, &credErr)
}
