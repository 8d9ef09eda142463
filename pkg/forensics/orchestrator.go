// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package forensics

import (
	"context"
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

// Orchestrator drives the top-level acquisition use cases over one
// provider. It is single-run, synchronous and blocking: every step waits
// for the previous one, and there is no locking against concurrent runs
// touching the same resources.
type Orchestrator struct {
	provider Provider
	vms      VMProvisioner
	log      *logrus.Entry
}

// New builds an Orchestrator. Each instance carries a run id in its log
// fields so interleaved runs can be told apart.
func New(provider Provider, vms VMProvisioner, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		vms:      vms,
		log:      log.WithField("run_id", ksuid.New().String()),
	}
}

// CreateDiskCopy copies the selected source disk into req.Dest:
// resolve disk, snapshot it, materialize the copy (directly, or staged
// through object storage when crossing an account or region boundary),
// then delete the snapshot if this call created it.
//
// Any failure is returned as a single *errs.ResourceCreationError naming
// the source and wrapping the root cause. There is no compensating
// transaction: a failure after the snapshot was created leaves the
// snapshot behind, which is logged loudly rather than cleaned up.
func (o *Orchestrator) CreateDiskCopy(ctx context.Context, req CopyRequest) (Disk, error) {
	if req.Selector.Empty() {
		return Disk{}, &errs.ResourceCreationError{
			Resource: "disk copy",
			Cause:    fmt.Errorf("one of instance name or disk name must be set"),
		}
	}

	disk, err := o.provider.ResolveSourceDisk(ctx, req.Source, req.Selector)
	if err != nil {
		return Disk{}, o.wrapCopyError(req.Selector.String(), err)
	}
	o.log.WithField("disk", disk.Name).Info("Disk copy started")

	snap, created, err := o.provider.CreateSnapshot(ctx, disk, req.SnapshotName)
	if err != nil {
		return Disk{}, o.wrapCopyError(disk.Name, err)
	}

	newDisk, copyErr := o.materialize(ctx, snap, req)
	if copyErr != nil {
		// No rollback of the snapshot on failure; make the leak visible
		// instead of silent.
		o.log.WithField("snapshot", snap.Name).
			Error("Disk copy failed after snapshot creation; the snapshot may be left behind")
		return Disk{}, o.wrapCopyError(disk.Name, copyErr)
	}

	if created {
		if err := o.provider.DeleteSnapshot(ctx, snap); err != nil {
			return Disk{}, o.wrapCopyError(disk.Name, err)
		}
	} else {
		o.log.WithField("snapshot", snap.Name).Info("Snapshot was reused, not deleting it")
	}

	o.log.WithFields(logrus.Fields{"disk": disk.Name, "copy": newDisk.Name}).
		Info("Disk successfully copied")
	return newDisk, nil
}

func (o *Orchestrator) materialize(ctx context.Context, snap Snapshot, req CopyRequest) (Disk, error) {
	direct, err := o.provider.DirectlyReachable(ctx, snap, req.Dest)
	if err != nil {
		return Disk{}, err
	}
	if direct {
		return o.provider.CreateDiskFromSnapshot(ctx, snap, req.Dest, req.DiskType, req.DiskName)
	}
	o.log.Info("Copy requested in a different destination account/region, staging through object storage")
	return o.provider.CreateDiskViaStaging(ctx, snap, req.Dest, req.DiskType, req.DiskName)
}

func (o *Orchestrator) wrapCopyError(subject string, err error) error {
	if _, ok := err.(*errs.ResourceCreationError); ok {
		return err
	}
	return &errs.ResourceCreationError{Resource: subject, Cause: err}
}

// StartAnalysisVm gets or creates the analysis VM described by spec and
// attaches each named disk read-only. created reports whether the VM was
// created by this call.
func (o *Orchestrator) StartAnalysisVm(ctx context.Context, scope Scope, spec VMSpec, attachDiskNames []string) (VM, bool, error) {
	vm, created, err := o.vms.GetOrCreateAnalysisVM(ctx, scope, spec)
	if err != nil {
		return VM{}, false, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}
	for _, name := range attachDiskNames {
		disk, err := o.vms.ResolveDisk(ctx, scope, name)
		if err != nil {
			return VM{}, created, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
		}
		if err := o.vms.AttachDisk(ctx, &vm, disk, false); err != nil {
			return VM{}, created, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
		}
	}
	return vm, created, nil
}
