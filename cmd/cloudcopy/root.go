// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evidencelab/cloudcopy/pkg/azure"
	"github.com/evidencelab/cloudcopy/pkg/config"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/gcp"
)

// app carries the settings shared by every subcommand.
type app struct {
	provider     string
	logLevel     string
	azureProfile string

	log *logrus.Entry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "cloudcopy",
		Short:         "Forensic disk acquisition on Google Cloud and Azure",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.provider, "provider", "gcp", "cloud provider (gcp or azure)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&a.azureProfile, "azure-profile", "", "named profile in the Azure credentials file")

	viper.SetEnvPrefix("CLOUDCOPY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(pf)

	cmd.AddCommand(
		newCopyDiskCmd(a),
		newStartVMCmd(a),
		newExportDiskCmd(a),
		newListInstancesCmd(a),
		newListDisksCmd(a),
	)
	return cmd
}

func (a *app) setup() error {
	// Environment variables take over for flags left at their default.
	if v := viper.GetString("provider"); v != "" {
		a.provider = v
	}
	if v := viper.GetString("log-level"); v != "" {
		a.logLevel = v
	}
	if v := viper.GetString("azure-profile"); v != "" {
		a.azureProfile = v
	}

	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	a.log = logrus.NewEntry(logger)
	return nil
}

// backends builds the provider pair selected by --provider.
func (a *app) backends(ctx context.Context) (forensics.Provider, forensics.VMProvisioner, error) {
	switch a.provider {
	case "gcp":
		c, err := gcp.NewClient(ctx, a.log)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case "azure":
		creds, err := config.Azure(a.azureProfile)
		if err != nil {
			return nil, nil, err
		}
		p := azure.NewProvider(creds.SubscriptionID, creds.Credential, a.log)
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q (want gcp or azure)", a.provider)
	}
}
