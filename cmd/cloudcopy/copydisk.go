// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
)

func newCopyDiskCmd(a *app) *cobra.Command {
	var (
		srcAccount, srcRegion, srcGroup string
		dstAccount, dstRegion, dstGroup string
		instance, disk                  string
		diskType, diskName, snapName    string
	)

	cmd := &cobra.Command{
		Use:   "copydisk",
		Short: "Copy a disk (or an instance's boot disk) into an evidence copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, vms, err := a.backends(cmd.Context())
			if err != nil {
				return err
			}
			orch := forensics.New(provider, vms, a.log)

			req := forensics.CopyRequest{
				Source:       forensics.Scope{Account: srcAccount, Region: srcRegion, Group: srcGroup},
				Dest:         forensics.Scope{Account: dstAccount, Region: dstRegion, Group: dstGroup},
				Selector:     forensics.SourceSelector{InstanceName: instance, DiskName: disk},
				DiskType:     diskType,
				DiskName:     diskName,
				SnapshotName: snapName,
			}
			if req.Dest.Account == "" {
				req.Dest = req.Source
			}

			copied, err := orch.CreateDiskCopy(cmd.Context(), req)
			if err != nil {
				// A snapshot that was already gone when the cleanup ran
				// means the delete took effect; the copy itself landed.
				if snapshotAlreadyGone(err) {
					a.log.WithError(err).Warn("Snapshot was already gone when cleanup ran; treating the copy as complete")
					fmt.Fprintln(cmd.OutOrStdout(), "Disk copy completed; the snapshot was already deleted")
					return nil
				}
				// The copy itself may have landed when only the snapshot
				// cleanup failed; say so instead of reporting a dead run.
				var delErr *errs.ResourceDeletionError
				if errors.As(err, &delErr) {
					a.log.WithError(err).Warn("The disk copy may have completed; the snapshot could not be deleted")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disk copy created: %s (in %s)\n", copied.Name, copied.Scope)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&srcAccount, "src-account", "", "source project or subscription (required)")
	f.StringVar(&srcRegion, "src-region", "", "source zone or region")
	f.StringVar(&srcGroup, "src-group", "", "source resource group (Azure)")
	f.StringVar(&dstAccount, "dst-account", "", "destination project or subscription (defaults to the source)")
	f.StringVar(&dstRegion, "dst-region", "", "destination zone or region")
	f.StringVar(&dstGroup, "dst-group", "", "destination resource group (Azure)")
	f.StringVar(&instance, "instance", "", "copy the boot disk of this instance")
	f.StringVar(&disk, "disk", "", "copy this disk (wins over --instance)")
	f.StringVar(&diskType, "disk-type", "", "destination disk type or SKU")
	f.StringVar(&diskName, "disk-name", "", "destination disk name (defaults to a deterministic name)")
	f.StringVar(&snapName, "snapshot-name", "", "snapshot name (defaults to a timestamped name)")
	_ = cmd.MarkFlagRequired("src-account")
	return cmd
}

// snapshotAlreadyGone reports whether err is a snapshot-cleanup failure
// whose cause is the snapshot not being there anymore. Both providers put
// the not-found on the deletion error's chain, so the check is
// provider-neutral.
func snapshotAlreadyGone(err error) bool {
	var delErr *errs.ResourceDeletionError
	if !errors.As(err, &delErr) {
		return false
	}
	var notFound *errs.ResourceNotFoundError
	return errors.As(delErr.Cause, &notFound)
}
