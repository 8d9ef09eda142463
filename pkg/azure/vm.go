// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package azure

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/google/uuid"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/scripts"
)

const adminUsername = "azureuser"

// dsv2Size is one published DS_v2 sizing.
type dsv2Size struct {
	memoryMB int32
	name     string
}

// dsv2Sizes is the DS_v2 catalogue keyed by core count.
var dsv2Sizes = map[int32]dsv2Size{
	1:  {3584, "Standard_DS1_v2"},
	2:  {7168, "Standard_DS2_v2"},
	4:  {14336, "Standard_DS3_v2"},
	8:  {28672, "Standard_DS4_v2"},
	16: {57344, "Standard_DS5_v2"},
}

// vmSizeFor resolves the requested sizing to a DS_v2 size by exact match.
// MemoryMB zero means the size implied by the core count. There is no
// closest-fit fallback.
func vmSizeFor(cpuCores, memoryMB int32) (string, error) {
	size, ok := dsv2Sizes[cpuCores]
	if !ok || (memoryMB != 0 && memoryMB != size.memoryMB) {
		return "", &errs.MachineTypeLookupError{CPUCores: cpuCores, MemoryMB: memoryMB}
	}
	return size.name, nil
}

// GetOrCreateAnalysisVM returns the VM named in spec, creating it with the
// forensic toolchain custom data if absent. Sizing of an existing VM is
// not reconciled.
func (p *Provider) GetOrCreateAnalysisVM(ctx context.Context, scope forensics.Scope, spec forensics.VMSpec) (forensics.VM, bool, error) {
	vm, err := p.getInstance(ctx, scope, spec.Name)
	if err == nil {
		model, err := p.vmModel(scope.Account, vm)
		return model, false, err
	}
	var notFound *errs.ResourceNotFoundError
	if !errors.As(err, &notFound) {
		return forensics.VM{}, false, err
	}

	model, err := p.createAnalysisVM(ctx, scope, spec)
	if err != nil {
		return forensics.VM{}, false, err
	}
	return model, true, nil
}

func (p *Provider) createAnalysisVM(ctx context.Context, scope forensics.Scope, spec forensics.VMSpec) (forensics.VM, error) {
	size, err := vmSizeFor(spec.CPUCores, spec.MemoryMB)
	if err != nil {
		return forensics.VM{}, err
	}

	if err := p.EnsureResourceGroup(ctx, scope); err != nil {
		return forensics.VM{}, err
	}
	nicID, err := p.ensureNetworkInterface(ctx, scope, spec.Name)
	if err != nil {
		return forensics.VM{}, err
	}

	customData, err := scripts.CustomData(spec.Packages)
	if err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}

	bootDiskSize := spec.BootDiskSizeGB
	if bootDiskSize == 0 {
		bootDiskSize = 50
	}
	bootDiskType := armcompute.StorageAccountTypesStandardSSDLRS
	if spec.BootDiskType != "" {
		bootDiskType = armcompute.StorageAccountTypes(spec.BootDiskType)
	}

	c, err := p.client(scope.Account)
	if err != nil {
		return forensics.VM{}, err
	}

	// The password is never surfaced; access is meant to go through the
	// provisioned SSH path of the image.
	password := uuid.NewString()

	lro, err := c.VirtualMachinesClient.BeginCreateOrUpdate(ctx, scope.Group, spec.Name, armcompute.VirtualMachine{
		Location: to.Ptr(scope.Region),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(size)),
			},
			StorageProfile: &armcompute.StorageProfile{
				ImageReference: &armcompute.ImageReference{
					Publisher: to.Ptr("Canonical"),
					Offer:     to.Ptr("0001-com-ubuntu-server-jammy"),
					SKU:       to.Ptr("22_04-lts"),
					Version:   to.Ptr("latest"),
				},
				OSDisk: &armcompute.OSDisk{
					Name:         to.Ptr(spec.Name + "-os"),
					CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
					DiskSizeGB:   to.Ptr(int32(bootDiskSize)),
					ManagedDisk: &armcompute.ManagedDiskParameters{
						StorageAccountType: to.Ptr(bootDiskType),
					},
				},
			},
			OSProfile: &armcompute.OSProfile{
				ComputerName:  to.Ptr(spec.Name),
				AdminUsername: to.Ptr(adminUsername),
				AdminPassword: to.Ptr(password),
				CustomData:    to.Ptr(customData),
			},
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{
					ID: to.Ptr(nicID),
				}},
			},
		},
		Tags: map[string]*string{"purpose": to.Ptr("analysis")},
	}, nil)
	if err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}
	resp, err := await(ctx, p.poller, "virtualmachine.create", lro)
	if err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}

	p.log.WithField("vm", spec.Name).Info("Analysis VM created")
	return p.vmModel(scope.Account, &resp.VirtualMachine)
}

// ResolveDisk looks up a disk by name in scope.
func (p *Provider) ResolveDisk(ctx context.Context, scope forensics.Scope, name string) (forensics.Disk, error) {
	sub := scope.Account
	if sub == "" {
		sub = p.defaultSub
	}
	d, err := p.getDisk(ctx, scope, name)
	if err != nil {
		return forensics.Disk{}, err
	}
	return p.diskModel(sub, d)
}

// AttachDisk attaches disk as a data disk on the next free LUN, read-only
// unless readWrite is set.
func (p *Provider) AttachDisk(ctx context.Context, vm *forensics.VM, disk forensics.Disk, readWrite bool) error {
	c, err := p.client(vm.Scope.Account)
	if err != nil {
		return err
	}

	current, err := c.VirtualMachinesClient.Get(ctx, vm.Scope.Group, vm.Name, nil)
	if err != nil {
		return fmt.Errorf("failed to get virtual machine %s: %w", vm.Name, err)
	}
	if current.Properties == nil || current.Properties.StorageProfile == nil {
		return fmt.Errorf("virtual machine %s has no storage profile", vm.Name)
	}

	caching := armcompute.CachingTypesReadOnly
	if readWrite {
		caching = armcompute.CachingTypesReadWrite
	}
	dataDisks := current.Properties.StorageProfile.DataDisks
	var lun int32
	for _, d := range dataDisks {
		if d.Lun != nil && *d.Lun >= lun {
			lun = *d.Lun + 1
		}
	}
	current.Properties.StorageProfile.DataDisks = append(dataDisks, &armcompute.DataDisk{
		Lun:          to.Ptr(lun),
		Name:         to.Ptr(disk.Name),
		CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesAttach),
		Caching:      to.Ptr(caching),
		ManagedDisk:  &armcompute.ManagedDiskParameters{ID: to.Ptr(disk.ID)},
	})

	lro, err := c.VirtualMachinesClient.BeginCreateOrUpdate(ctx, vm.Scope.Group, vm.Name, current.VirtualMachine, nil)
	if err != nil {
		return fmt.Errorf("failed to attach disk %s to %s: %w", disk.Name, vm.Name, err)
	}
	if _, err := await(ctx, p.poller, "virtualmachine.attachDisk", lro); err != nil {
		return fmt.Errorf("failed to attach disk %s to %s: %w", disk.Name, vm.Name, err)
	}
	vm.AttachedDisks = append(vm.AttachedDisks, disk.Name)
	return nil
}

func (p *Provider) vmModel(subscription string, vm *armcompute.VirtualMachine) (forensics.VM, error) {
	if subscription == "" {
		subscription = p.defaultSub
	}
	group, err := resourceGroupOf(*vm.ID)
	if err != nil {
		return forensics.VM{}, err
	}
	model := forensics.VM{
		Name:  *vm.Name,
		ID:    *vm.ID,
		Scope: forensics.Scope{Account: subscription, Region: *vm.Location, Group: group},
	}
	if vm.Properties != nil && vm.Properties.StorageProfile != nil {
		for _, d := range vm.Properties.StorageProfile.DataDisks {
			if d.Name != nil {
				model.AttachedDisks = append(model.AttachedDisks, *d.Name)
			} else if d.ManagedDisk != nil && d.ManagedDisk.ID != nil {
				model.AttachedDisks = append(model.AttachedDisks, path.Base(*d.ManagedDisk.ID))
			}
		}
	}
	return model, nil
}
