// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package forensics

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

// fakeProvider scripts the provider behaviour and records calls.
type fakeProvider struct {
	disk          Disk
	resolveErr    error
	snapCreated   bool
	snapErr       error
	reachable     bool
	copyDisk      Disk
	copyErr       error
	stagedDisk    Disk
	stagedErr     error
	deleteErr     error
	deletedSnaps  []string
	directCalls   int
	stagingCalls  int
}

func (f *fakeProvider) ResolveSourceDisk(context.Context, Scope, SourceSelector) (Disk, error) {
	if f.resolveErr != nil {
		return Disk{}, f.resolveErr
	}
	return f.disk, nil
}

func (f *fakeProvider) CreateSnapshot(_ context.Context, disk Disk, name string) (Snapshot, bool, error) {
	if f.snapErr != nil {
		return Snapshot{}, false, f.snapErr
	}
	if name == "" {
		name = disk.Name + "-snapshot"
	}
	return Snapshot{Name: name, Scope: disk.Scope, Region: disk.Region, SourceDisk: disk}, f.snapCreated, nil
}

func (f *fakeProvider) DeleteSnapshot(_ context.Context, snap Snapshot) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedSnaps = append(f.deletedSnaps, snap.Name)
	return nil
}

func (f *fakeProvider) DirectlyReachable(context.Context, Snapshot, Scope) (bool, error) {
	return f.reachable, nil
}

func (f *fakeProvider) CreateDiskFromSnapshot(context.Context, Snapshot, Scope, string, string) (Disk, error) {
	f.directCalls++
	return f.copyDisk, f.copyErr
}

func (f *fakeProvider) CreateDiskViaStaging(context.Context, Snapshot, Scope, string, string) (Disk, error) {
	f.stagingCalls++
	return f.stagedDisk, f.stagedErr
}

// fakeProvisioner scripts the VM side.
type fakeProvisioner struct {
	vm        VM
	created   bool
	getErr    error
	disks     map[string]Disk
	attachErr error
	attached  []string
	readWrite []bool
}

func (f *fakeProvisioner) GetOrCreateAnalysisVM(context.Context, Scope, VMSpec) (VM, bool, error) {
	return f.vm, f.created, f.getErr
}

func (f *fakeProvisioner) ResolveDisk(_ context.Context, _ Scope, name string) (Disk, error) {
	disk, ok := f.disks[name]
	if !ok {
		return Disk{}, &errs.ResourceNotFoundError{Resource: name}
	}
	return disk, nil
}

func (f *fakeProvisioner) AttachDisk(_ context.Context, vm *VM, disk Disk, readWrite bool) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached = append(f.attached, disk.Name)
	f.readWrite = append(f.readWrite, readWrite)
	vm.AttachedDisks = append(vm.AttachedDisks, disk.Name)
	return nil
}

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testRequest() CopyRequest {
	return CopyRequest{
		Source:   Scope{Account: "src-proj", Region: "us-central1-a"},
		Dest:     Scope{Account: "dst-proj", Region: "us-central1-a"},
		Selector: SourceSelector{DiskName: "fake-disk"},
	}
}

func TestCreateDiskCopyDirect(t *testing.T) {
	provider := &fakeProvider{
		disk:        Disk{Name: "fake-disk", Scope: Scope{Account: "src-proj"}},
		snapCreated: true,
		reachable:   true,
		copyDisk:    Disk{Name: "evidence-fake-disk-deadbeef-copy"},
	}
	orch := New(provider, &fakeProvisioner{}, testLog())

	copied, err := orch.CreateDiskCopy(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "evidence-fake-disk-deadbeef-copy", copied.Name)
	assert.Equal(t, 1, provider.directCalls)
	assert.Equal(t, 0, provider.stagingCalls)
	// The snapshot this run created is cleaned up.
	assert.Equal(t, []string{"fake-disk-snapshot"}, provider.deletedSnaps)
}

func TestCreateDiskCopyStaged(t *testing.T) {
	provider := &fakeProvider{
		disk:        Disk{Name: "fake-disk"},
		snapCreated: true,
		reachable:   false,
		stagedDisk:  Disk{Name: "evidence_fake_disk_deadbeef_copy"},
	}
	orch := New(provider, &fakeProvisioner{}, testLog())

	copied, err := orch.CreateDiskCopy(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "evidence_fake_disk_deadbeef_copy", copied.Name)
	assert.Equal(t, 0, provider.directCalls)
	assert.Equal(t, 1, provider.stagingCalls)
}

func TestCreateDiskCopyReusedSnapshotNotDeleted(t *testing.T) {
	provider := &fakeProvider{
		disk:        Disk{Name: "fake-disk"},
		snapCreated: false,
		reachable:   true,
		copyDisk:    Disk{Name: "copy"},
	}
	orch := New(provider, &fakeProvisioner{}, testLog())

	_, err := orch.CreateDiskCopy(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, provider.deletedSnaps)
}

func TestCreateDiskCopyFailureLeavesSnapshot(t *testing.T) {
	provider := &fakeProvider{
		disk:        Disk{Name: "fake-disk"},
		snapCreated: true,
		reachable:   true,
		copyErr:     errors.New("quota exceeded"),
	}
	orch := New(provider, &fakeProvisioner{}, testLog())

	_, err := orch.CreateDiskCopy(context.Background(), testRequest())
	var creationErr *errs.ResourceCreationError
	require.ErrorAs(t, err, &creationErr)
	// No compensating delete of the snapshot.
	assert.Empty(t, provider.deletedSnaps)
}

func TestCreateDiskCopyEmptySelector(t *testing.T) {
	orch := New(&fakeProvider{}, &fakeProvisioner{}, testLog())

	req := testRequest()
	req.Selector = SourceSelector{}
	_, err := orch.CreateDiskCopy(context.Background(), req)
	var creationErr *errs.ResourceCreationError
	require.ErrorAs(t, err, &creationErr)
}

func TestCreateDiskCopyResolveErrorNotDoubleWrapped(t *testing.T) {
	resolveErr := &errs.ResourceNotFoundError{Resource: "fake-disk", Scope: "src-proj"}
	provider := &fakeProvider{resolveErr: resolveErr}
	orch := New(provider, &fakeProvisioner{}, testLog())

	_, err := orch.CreateDiskCopy(context.Background(), testRequest())
	var creationErr *errs.ResourceCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.ErrorIs(t, err, resolveErr)
	// Exactly one creation-error layer.
	var inner *errs.ResourceCreationError
	assert.False(t, errors.As(creationErr.Cause, &inner))
}

func TestStartAnalysisVmAttachesReadOnly(t *testing.T) {
	vms := &fakeProvisioner{
		vm:      VM{Name: "analysis-vm", Scope: Scope{Account: "proj", Region: "zone"}},
		created: true,
		disks: map[string]Disk{
			"evidence-1": {Name: "evidence-1"},
			"evidence-2": {Name: "evidence-2"},
		},
	}
	orch := New(&fakeProvider{}, vms, testLog())

	vm, created, err := orch.StartAnalysisVm(context.Background(), Scope{Account: "proj"},
		VMSpec{Name: "analysis-vm", CPUCores: 4}, []string{"evidence-1", "evidence-2"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.ElementsMatch(t, []string{"evidence-1", "evidence-2"}, vm.AttachedDisks)
	assert.Equal(t, []bool{false, false}, vms.readWrite)
}

func TestStartAnalysisVmUnknownDisk(t *testing.T) {
	vms := &fakeProvisioner{vm: VM{Name: "analysis-vm"}, disks: map[string]Disk{}}
	orch := New(&fakeProvider{}, vms, testLog())

	_, _, err := orch.StartAnalysisVm(context.Background(), Scope{}, VMSpec{Name: "analysis-vm"}, []string{"missing"})
	var creationErr *errs.ResourceCreationError
	require.ErrorAs(t, err, &creationErr)
	var notFound *errs.ResourceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
