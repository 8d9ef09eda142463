// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package forensics holds the provider-neutral acquisition pipeline: the
// domain types, the capability interfaces each cloud backend implements,
// and the orchestrator composing them.
package forensics

import (
	"context"
	"fmt"
)

// Scope is the account/subscription/project a resource lives in, plus the
// placement inside it. Group is the Azure resource group; empty on GCP.
// Region is a GCP zone or an Azure region.
type Scope struct {
	Account string
	Region  string
	Group   string
}

func (s Scope) String() string {
	if s.Group != "" {
		return fmt.Sprintf("%s/%s", s.Account, s.Group)
	}
	return s.Account
}

// SourceSelector picks the disk to acquire: a disk by name, or an
// instance whose boot disk is taken. Exactly one must be set; when both
// are set the disk name wins, matching the instance-attached-disk lookup.
type SourceSelector struct {
	InstanceName string
	DiskName     string
}

// Empty reports whether neither selector is set.
func (s SourceSelector) Empty() bool {
	return s.InstanceName == "" && s.DiskName == ""
}

func (s SourceSelector) String() string {
	if s.DiskName != "" {
		return s.DiskName
	}
	return s.InstanceName
}

// Disk is a provider disk. ID is the provider's own identity (selfLink on
// GCP, ARM ID on Azure) and is what checksum-derived names are computed
// from.
type Disk struct {
	Name             string
	ID               string
	Scope            Scope
	Region           string
	Type             string
	SourceSnapshotID string
}

// Snapshot is a point-in-time copy of exactly one source disk. Region is
// inherited from the source disk at creation time.
type Snapshot struct {
	Name       string
	ID         string
	Scope      Scope
	Region     string
	SourceDisk Disk
}

// VM is an analysis virtual machine.
type VM struct {
	Name          string
	ID            string
	Scope         Scope
	AttachedDisks []string
}

// VMSpec is the sizing and provisioning request for an analysis VM. The
// sizing is matched exactly against the provider's machine-type catalogue;
// there is no closest-fit fallback.
type VMSpec struct {
	Name           string
	BootDiskSizeGB int64
	BootDiskType   string
	CPUCores       int32
	MemoryMB       int32
	// Packages replaces the ${packages[@]} placeholder in the startup
	// script when non-empty.
	Packages []string
}

// CopyRequest describes one CreateDiskCopy invocation.
type CopyRequest struct {
	Source   Scope
	Dest     Scope
	Selector SourceSelector
	// DiskType is the destination disk type/SKU; the provider default is
	// used when empty.
	DiskType string
	// DiskName overrides the generated checksum name when set.
	DiskName string
	// SnapshotName overrides the generated timestamp name when set; it is
	// validated against the snapshot grammar as-is, never truncated.
	SnapshotName string
}

// Provider is the capability set a cloud backend exposes to the
// orchestrator for disk acquisition.
type Provider interface {
	// ResolveSourceDisk resolves the selector to a disk in scope. An
	// instance selector resolves through the instance's boot disk.
	ResolveSourceDisk(ctx context.Context, scope Scope, sel SourceSelector) (Disk, error)

	// CreateSnapshot snapshots disk. created is false when an existing
	// snapshot of that name was reused instead.
	CreateSnapshot(ctx context.Context, disk Disk, name string) (snap Snapshot, created bool, err error)

	DeleteSnapshot(ctx context.Context, snap Snapshot) error

	// DirectlyReachable reports whether dst can build a disk straight from
	// snap, or whether the copy must stage through object storage.
	DirectlyReachable(ctx context.Context, snap Snapshot, dst Scope) (bool, error)

	CreateDiskFromSnapshot(ctx context.Context, snap Snapshot, dst Scope, diskType, name string) (Disk, error)

	// CreateDiskViaStaging bridges an account/region boundary through a
	// temporary storage account. The staging area is always torn down
	// before return, success or failure.
	CreateDiskViaStaging(ctx context.Context, snap Snapshot, dst Scope, diskType, name string) (Disk, error)
}

// VMProvisioner provisions and mutates analysis VMs.
type VMProvisioner interface {
	// GetOrCreateAnalysisVM returns the VM named in spec, creating it if
	// absent. created is false on reuse; sizing of an existing VM is not
	// reconciled.
	GetOrCreateAnalysisVM(ctx context.Context, scope Scope, spec VMSpec) (vm VM, created bool, err error)

	ResolveDisk(ctx context.Context, scope Scope, name string) (Disk, error)

	// AttachDisk appends disk to the VM's disk list. Disks are never
	// detached by this pipeline.
	AttachDisk(ctx context.Context, vm *VM, disk Disk, readWrite bool) error
}
