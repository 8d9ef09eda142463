// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/evidencelab/cloudcopy/pkg/azure"
	"github.com/evidencelab/cloudcopy/pkg/config"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/gcp"
)

func newListInstancesCmd(a *app) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "listinstances",
		Short: "List all instances in a project or subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.listNames(cmd, account, true)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "project or subscription (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newListDisksCmd(a *app) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "listdisks",
		Short: "List all disks in a project or subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.listNames(cmd, account, false)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "project or subscription (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (a *app) listNames(cmd *cobra.Command, account string, instances bool) ([]string, error) {
	ctx := cmd.Context()
	scope := forensics.Scope{Account: account}
	switch a.provider {
	case "gcp":
		client, err := gcp.NewClient(ctx, a.log)
		if err != nil {
			return nil, err
		}
		var names []string
		if instances {
			all, err := client.ListInstances(ctx, account)
			if err != nil {
				return nil, err
			}
			for name := range all {
				names = append(names, name)
			}
		} else {
			all, err := client.ListDisks(ctx, account)
			if err != nil {
				return nil, err
			}
			for name := range all {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names, nil
	case "azure":
		creds, err := config.Azure(a.azureProfile)
		if err != nil {
			return nil, err
		}
		p := azure.NewProvider(creds.SubscriptionID, creds.Credential, a.log)
		if instances {
			return p.ListInstanceNames(ctx, scope)
		}
		return p.ListDiskNames(ctx, scope)
	default:
		return nil, fmt.Errorf("unknown provider %q (want gcp or azure)", a.provider)
	}
}
