// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package config resolves provider credentials. Google Cloud clients use
// Application Default Credentials implicitly; Azure needs an explicit
// subscription and a token credential, resolved here from the environment
// or a profile file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

// CredentialsPathEnv overrides the default profile file location,
// ~/.azure/credentials.json.
const CredentialsPathEnv = "AZURE_CREDENTIALS_PATH"

// AzureCredentials is a resolved Azure identity: the subscription to
// operate in and the credential to call ARM with.
type AzureCredentials struct {
	SubscriptionID string
	Credential     azcore.TokenCredential
}

// azureProfile is one named entry in the profile file. All four fields are
// required.
type azureProfile struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientID       string `json:"clientId"`
	ClientSecret   string `json:"clientSecret"`
	TenantID       string `json:"tenantId"`
}

// Azure resolves credentials for the named profile, or from the
// environment when profileName is empty.
//
// The environment path reads AZURE_SUBSCRIPTION_ID plus the standard
// AZURE_CLIENT_ID / AZURE_CLIENT_SECRET / AZURE_TENANT_ID trio; with only
// the subscription set, the default credential chain (CLI login, managed
// identity) is used instead.
func Azure(profileName string) (*AzureCredentials, error) {
	if profileName != "" {
		return azureFromProfile(profileName)
	}
	return azureFromEnv()
}

func azureFromEnv() (*AzureCredentials, error) {
	subscription := os.Getenv("AZURE_SUBSCRIPTION_ID")
	if subscription == "" {
		return nil, &errs.CredentialsConfigurationError{
			Detail: "AZURE_SUBSCRIPTION_ID is not set",
		}
	}

	clientID := os.Getenv("AZURE_CLIENT_ID")
	clientSecret := os.Getenv("AZURE_CLIENT_SECRET")
	tenantID := os.Getenv("AZURE_TENANT_ID")
	if clientID != "" && clientSecret != "" && tenantID != "" {
		cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		if err != nil {
			return nil, &errs.CredentialsConfigurationError{
				Detail: "could not build a client secret credential from the environment",
				Cause:  err,
			}
		}
		return &AzureCredentials{SubscriptionID: subscription, Credential: cred}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, &errs.CredentialsConfigurationError{
			Detail: "could not build the default credential chain",
			Cause:  err,
		}
	}
	return &AzureCredentials{SubscriptionID: subscription, Credential: cred}, nil
}

func azureFromProfile(profileName string) (*AzureCredentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.CredentialsConfigurationError{
			Detail: fmt.Sprintf("could not read credentials file %s", path),
			Cause:  err,
		}
	}

	var profiles map[string]azureProfile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, &errs.CredentialsConfigurationError{
			Detail: fmt.Sprintf("credentials file %s is not valid JSON", path),
			Cause:  err,
		}
	}

	profile, ok := profiles[profileName]
	if !ok {
		return nil, &errs.CredentialsConfigurationError{
			Detail: fmt.Sprintf("profile %q not found in %s", profileName, path),
		}
	}
	if profile.SubscriptionID == "" || profile.ClientID == "" || profile.ClientSecret == "" || profile.TenantID == "" {
		return nil, &errs.CredentialsConfigurationError{
			Detail: fmt.Sprintf("profile %q must set subscriptionId, clientId, clientSecret and tenantId", profileName),
		}
	}

	cred, err := azidentity.NewClientSecretCredential(profile.TenantID, profile.ClientID, profile.ClientSecret, nil)
	if err != nil {
		return nil, &errs.CredentialsConfigurationError{
			Detail: fmt.Sprintf("could not build a credential from profile %q", profileName),
			Cause:  err,
		}
	}
	return &AzureCredentials{SubscriptionID: profile.SubscriptionID, Credential: cred}, nil
}

func credentialsPath() (string, error) {
	if path := os.Getenv(CredentialsPathEnv); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &errs.CredentialsConfigurationError{
			Detail: "could not resolve the home directory for the default credentials path",
			Cause:  err,
		}
	}
	return filepath.Join(home, ".azure", "credentials.json"), nil
}
