// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/gcp"
)

func newExportDiskCmd(a *app) *cobra.Command {
	var (
		account, zone string
		disk          string
		bucket        string
		imageName     string
	)

	cmd := &cobra.Command{
		Use:   "exportdisk",
		Short: "Export a disk as a compressed image tarball to a storage bucket (gcp only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.provider != "gcp" {
				return fmt.Errorf("exportdisk is only implemented for the gcp provider")
			}
			client, err := gcp.NewClient(cmd.Context(), a.log)
			if err != nil {
				return err
			}

			scope := forensics.Scope{Account: account, Region: zone}
			resolved, err := client.ResolveDisk(cmd.Context(), scope, disk)
			if err != nil {
				return err
			}
			uri, err := client.ExportDisk(cmd.Context(), resolved, bucket, imageName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disk exported to %s\n", uri)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&account, "account", "", "project (required)")
	f.StringVar(&zone, "zone", "", "zone of the disk")
	f.StringVar(&disk, "disk", "", "disk to export (required)")
	f.StringVar(&bucket, "bucket", "", "destination bucket, created when absent (required)")
	f.StringVar(&imageName, "image-name", "", "intermediate image name (defaults to a timestamped name)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("disk")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}
