// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package gcp

import (
	"context"
	"errors"
	"fmt"
	"path"

	compute "google.golang.org/api/compute/v1"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/scripts"
)

const (
	analysisImageProject = "ubuntu-os-cloud"
	analysisImageFamily  = "ubuntu-2204-lts"
	defaultBootDiskType  = "pd-standard"
)

// e2StandardCores are the published e2-standard sizes; each carries
// 4096 MB of memory per core.
var e2StandardCores = []int32{2, 4, 8, 16, 32}

const e2MemoryPerCoreMB = 4096

var _ forensics.VMProvisioner = (*Client)(nil)

// machineTypeFor resolves the requested sizing to an e2-standard machine
// type by exact match. MemoryMB zero means the size implied by the core
// count. There is no closest-fit fallback.
func machineTypeFor(cpuCores, memoryMB int32) (string, error) {
	for _, cores := range e2StandardCores {
		if cpuCores != cores {
			continue
		}
		if memoryMB == 0 || memoryMB == cores*e2MemoryPerCoreMB {
			return fmt.Sprintf("e2-standard-%d", cores), nil
		}
	}
	return "", &errs.MachineTypeLookupError{CPUCores: cpuCores, MemoryMB: memoryMB}
}

// GetOrCreateAnalysisVM returns the VM named in spec, creating it with the
// forensic toolchain startup script if absent. Sizing of an existing VM is
// not reconciled.
func (c *Client) GetOrCreateAnalysisVM(ctx context.Context, scope forensics.Scope, spec forensics.VMSpec) (forensics.VM, bool, error) {
	inst, err := c.GetInstance(ctx, scope.Account, spec.Name)
	if err == nil {
		return vmModel(scope.Account, inst), false, nil
	}
	var notFound *errs.ResourceNotFoundError
	if !errors.As(err, &notFound) {
		return forensics.VM{}, false, err
	}

	vm, err := c.createAnalysisVM(ctx, scope, spec)
	if err != nil {
		return forensics.VM{}, false, err
	}
	return vm, true, nil
}

func (c *Client) createAnalysisVM(ctx context.Context, scope forensics.Scope, spec forensics.VMSpec) (forensics.VM, error) {
	machineType, err := machineTypeFor(spec.CPUCores, spec.MemoryMB)
	if err != nil {
		return forensics.VM{}, err
	}

	image, err := c.svc.Images.GetFromFamily(analysisImageProject, analysisImageFamily).Context(ctx).Do()
	if err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{
			Resource: spec.Name,
			Cause:    fmt.Errorf("failed to resolve image family %s: %w", analysisImageFamily, err),
		}
	}

	startup, err := scripts.Startup(spec.Packages)
	if err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}

	bootDiskType := spec.BootDiskType
	if bootDiskType == "" {
		bootDiskType = defaultBootDiskType
	}
	bootDiskSize := spec.BootDiskSizeGB
	if bootDiskSize == 0 {
		bootDiskSize = 50
	}

	zone := scope.Region
	body := &compute.Instance{
		Name:        spec.Name,
		MachineType: fmt.Sprintf("zones/%s/machineTypes/%s", zone, machineType),
		Disks: []*compute.AttachedDisk{{
			Boot:       true,
			AutoDelete: true,
			InitializeParams: &compute.AttachedDiskInitializeParams{
				SourceImage: image.SelfLink,
				DiskSizeGb:  bootDiskSize,
				DiskType:    diskTypeURL(scope.Account, zone, bootDiskType),
			},
		}},
		NetworkInterfaces: []*compute.NetworkInterface{{
			Network: "global/networks/default",
			AccessConfigs: []*compute.AccessConfig{{
				Type: "ONE_TO_ONE_NAT",
				Name: "External NAT",
			}},
		}},
		Metadata: &compute.Metadata{
			Items: []*compute.MetadataItems{{
				Key:   "startup-script",
				Value: &startup,
			}},
		},
		Labels: map[string]string{"purpose": "analysis"},
	}

	op, err := c.svc.Instances.Insert(scope.Account, zone, body).Context(ctx).Do()
	if err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}
	if err := c.awaitZone(ctx, "instance.insert", scope.Account, zone, op); err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}

	inst, err := c.svc.Instances.Get(scope.Account, zone, spec.Name).Context(ctx).Do()
	if err != nil {
		return forensics.VM{}, &errs.ResourceCreationError{Resource: spec.Name, Cause: err}
	}
	c.log.WithField("instance", spec.Name).Info("Analysis VM created")
	return vmModel(scope.Account, inst), nil
}

// ResolveDisk looks up a disk by name in scope.
func (c *Client) ResolveDisk(ctx context.Context, scope forensics.Scope, name string) (forensics.Disk, error) {
	d, err := c.GetDisk(ctx, scope.Account, name)
	if err != nil {
		return forensics.Disk{}, err
	}
	return diskModel(scope.Account, d), nil
}

// AttachDisk attaches disk to vm, read-only unless readWrite is set.
func (c *Client) AttachDisk(ctx context.Context, vm *forensics.VM, disk forensics.Disk, readWrite bool) error {
	mode := "READ_ONLY"
	if readWrite {
		mode = "READ_WRITE"
	}
	zone := vm.Scope.Region
	body := &compute.AttachedDisk{
		Mode:       mode,
		Source:     fmt.Sprintf("projects/%s/zones/%s/disks/%s", disk.Scope.Account, disk.Region, disk.Name),
		DeviceName: disk.Name,
	}
	op, err := c.svc.Instances.AttachDisk(vm.Scope.Account, zone, vm.Name, body).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to attach disk %s to %s: %w", disk.Name, vm.Name, err)
	}
	if err := c.awaitZone(ctx, "instance.attachDisk", vm.Scope.Account, zone, op); err != nil {
		return fmt.Errorf("failed to attach disk %s to %s: %w", disk.Name, vm.Name, err)
	}
	vm.AttachedDisks = append(vm.AttachedDisks, disk.Name)
	return nil
}

func vmModel(project string, inst *compute.Instance) forensics.VM {
	zone := zoneOf(inst.Zone)
	vm := forensics.VM{
		Name:  inst.Name,
		ID:    fmt.Sprintf("projects/%s/zones/%s/instances/%s", project, zone, inst.Name),
		Scope: forensics.Scope{Account: project, Region: zone},
	}
	for _, attached := range inst.Disks {
		vm.AttachedDisks = append(vm.AttachedDisks, path.Base(attached.Source))
	}
	return vm
}
