// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package gcp

import (
	"context"
	"fmt"

	compute "google.golang.org/api/compute/v1"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/naming"
)

const (
	diskCopyPrefix  = "evidence"
	defaultDiskType = "pd-standard"
)

var _ forensics.Provider = (*Client)(nil)

// ResolveSourceDisk resolves the selector to a disk; an instance selector
// resolves through the instance's boot disk.
func (c *Client) ResolveSourceDisk(ctx context.Context, scope forensics.Scope, sel forensics.SourceSelector) (forensics.Disk, error) {
	if sel.DiskName != "" {
		d, err := c.GetDisk(ctx, scope.Account, sel.DiskName)
		if err != nil {
			return forensics.Disk{}, err
		}
		return diskModel(scope.Account, d), nil
	}
	inst, err := c.GetInstance(ctx, scope.Account, sel.InstanceName)
	if err != nil {
		return forensics.Disk{}, err
	}
	d, err := c.GetBootDisk(ctx, scope.Account, inst)
	if err != nil {
		return forensics.Disk{}, err
	}
	return diskModel(scope.Account, d), nil
}

// CreateSnapshot snapshots disk. An empty name yields <disk>-<timestamp>.
// A snapshot of the same name that already exists is reused; created is
// false on that path.
func (c *Client) CreateSnapshot(ctx context.Context, disk forensics.Disk, name string) (forensics.Snapshot, bool, error) {
	if name == "" {
		name = naming.TimestampName(Grammar, disk.Name, c.now())
	}
	if err := Grammar.Validate(name); err != nil {
		return forensics.Snapshot{}, false, err
	}

	snap := forensics.Snapshot{
		Name:       name,
		ID:         fmt.Sprintf("projects/%s/global/snapshots/%s", disk.Scope.Account, name),
		Scope:      disk.Scope,
		Region:     disk.Region,
		SourceDisk: disk,
	}

	op, err := c.svc.Disks.CreateSnapshot(disk.Scope.Account, disk.Region, disk.Name, &compute.Snapshot{Name: name}).
		Context(ctx).Do()
	if err != nil {
		if isStatus(err, 409) {
			c.log.WithField("snapshot", name).Info("Snapshot already exists, reusing it")
			return snap, false, nil
		}
		return forensics.Snapshot{}, false, &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	if err := c.awaitZone(ctx, "snapshot.create", disk.Scope.Account, disk.Region, op); err != nil {
		return forensics.Snapshot{}, false, &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	return snap, true, nil
}

// DeleteSnapshot deletes snap. Deleting an absent snapshot is an error,
// not an idempotent success; the not-found cause stays on the chain so
// callers that carve that case out can match it.
func (c *Client) DeleteSnapshot(ctx context.Context, snap forensics.Snapshot) error {
	op, err := c.svc.Snapshots.Delete(snap.Scope.Account, snap.Name).Context(ctx).Do()
	if err != nil {
		return c.snapshotDeleteError(snap, err)
	}
	if err := c.awaitGlobal(ctx, "snapshot.delete", snap.Scope.Account, op); err != nil {
		return c.snapshotDeleteError(snap, err)
	}
	return nil
}

func (c *Client) snapshotDeleteError(snap forensics.Snapshot, err error) error {
	if isStatus(err, 404) {
		err = &errs.ResourceNotFoundError{Resource: snap.Name, Scope: snap.Scope.Account, Cause: err}
	}
	return &errs.ResourceDeletionError{Resource: snap.Name, Cause: err}
}

// DirectlyReachable always reports true: snapshots are project-global and
// a disk in any project or zone can be built straight from one by URL.
func (c *Client) DirectlyReachable(context.Context, forensics.Snapshot, forensics.Scope) (bool, error) {
	return true, nil
}

// CreateDiskFromSnapshot builds a disk in dst from snap. An empty name
// yields the deterministic evidence-<source>-<crc32>-copy name; an empty
// diskType yields pd-standard; an empty destination zone means the
// snapshot's own zone.
func (c *Client) CreateDiskFromSnapshot(ctx context.Context, snap forensics.Snapshot, dst forensics.Scope, diskType, name string) (forensics.Disk, error) {
	if name == "" {
		var err error
		name, err = naming.CopyName(Grammar, snap.Scope.Account, snap.SourceDisk.Name, snap.Name, diskCopyPrefix)
		if err != nil {
			return forensics.Disk{}, err
		}
	} else if err := Grammar.Validate(name); err != nil {
		return forensics.Disk{}, err
	}
	if diskType == "" {
		diskType = defaultDiskType
	}
	if dst.Region == "" {
		dst.Region = snap.Region
	}

	body := &compute.Disk{
		Name:           name,
		SourceSnapshot: snap.ID,
		Type:           diskTypeURL(dst.Account, dst.Region, diskType),
	}
	op, err := c.svc.Disks.Insert(dst.Account, dst.Region, body).Context(ctx).Do()
	if err != nil {
		return forensics.Disk{}, &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	if err := c.awaitZone(ctx, "disk.insert", dst.Account, dst.Region, op); err != nil {
		return forensics.Disk{}, &errs.ResourceCreationError{Resource: name, Cause: err}
	}

	return forensics.Disk{
		Name:             name,
		ID:               fmt.Sprintf("projects/%s/zones/%s/disks/%s", dst.Account, dst.Region, name),
		Scope:            dst,
		Region:           dst.Region,
		Type:             diskType,
		SourceSnapshotID: snap.ID,
	}, nil
}

// CreateDiskViaStaging is never reached on this provider: snapshots are
// directly reachable from every destination, so DirectlyReachable routes
// all copies through CreateDiskFromSnapshot.
func (c *Client) CreateDiskViaStaging(ctx context.Context, snap forensics.Snapshot, dst forensics.Scope, diskType, name string) (forensics.Disk, error) {
	return forensics.Disk{}, &errs.TransferCreationError{
		Subject: snap.Name,
		Cause:   fmt.Errorf("staged copies are not needed on this provider"),
	}
}
