// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evidencelab/cloudcopy/pkg/forensics"
)

func newStartVMCmd(a *app) *cobra.Command {
	var (
		account, region, group string
		name                   string
		cpuCores               int32
		memoryMB               int32
		bootDiskSize           int64
		bootDiskType           string
		packages               []string
		attachDisks            []string
	)

	cmd := &cobra.Command{
		Use:   "startvm",
		Short: "Get or create an analysis VM and attach evidence disks read-only",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, vms, err := a.backends(cmd.Context())
			if err != nil {
				return err
			}
			orch := forensics.New(provider, vms, a.log)

			scope := forensics.Scope{Account: account, Region: region, Group: group}
			spec := forensics.VMSpec{
				Name:           name,
				BootDiskSizeGB: bootDiskSize,
				BootDiskType:   bootDiskType,
				CPUCores:       cpuCores,
				MemoryMB:       memoryMB,
				Packages:       packages,
			}

			vm, created, err := orch.StartAnalysisVm(cmd.Context(), scope, spec, attachDisks)
			if err != nil {
				return err
			}
			verb := "reused"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis VM %s: %s (disks: %v)\n", verb, vm.Name, vm.AttachedDisks)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&account, "account", "", "project or subscription (required)")
	f.StringVar(&region, "region", "", "zone or region (required)")
	f.StringVar(&group, "group", "", "resource group (Azure)")
	f.StringVar(&name, "name", "", "VM name (required)")
	f.Int32Var(&cpuCores, "cpu-cores", 4, "CPU cores, matched exactly against the machine catalogue")
	f.Int32Var(&memoryMB, "memory-mb", 0, "memory in MB; 0 means the size implied by the core count")
	f.Int64Var(&bootDiskSize, "boot-disk-size", 50, "boot disk size in GB")
	f.StringVar(&bootDiskType, "boot-disk-type", "", "boot disk type or SKU")
	f.StringSliceVar(&packages, "packages", nil, "packages installed at first boot instead of the default toolchain")
	f.StringSliceVar(&attachDisks, "attach-disks", nil, "disks to attach read-only")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
