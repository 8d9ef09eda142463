// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package gcp

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
)

// ListInstances returns all instances in the project keyed by name,
// aggregated over every zone.
func (c *Client) ListInstances(ctx context.Context, project string) (map[string]*compute.Instance, error) {
	out := make(map[string]*compute.Instance)
	err := c.svc.Instances.AggregatedList(project).Pages(ctx, func(page *compute.InstanceAggregatedList) error {
		for _, scoped := range page.Items {
			for _, inst := range scoped.Instances {
				out[inst.Name] = inst
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instances in %s: %w", project, err)
	}
	return out, nil
}

// ListDisks returns all disks in the project keyed by name, aggregated
// over every zone.
func (c *Client) ListDisks(ctx context.Context, project string) (map[string]*compute.Disk, error) {
	out := make(map[string]*compute.Disk)
	err := c.svc.Disks.AggregatedList(project).Pages(ctx, func(page *compute.DiskAggregatedList) error {
		for _, scoped := range page.Items {
			for _, disk := range scoped.Disks {
				out[disk.Name] = disk
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list disks in %s: %w", project, err)
	}
	return out, nil
}

// GetInstance looks the instance up by name across the whole project.
func (c *Client) GetInstance(ctx context.Context, project, name string) (*compute.Instance, error) {
	instances, err := c.ListInstances(ctx, project)
	if err != nil {
		return nil, err
	}
	inst, ok := instances[name]
	if !ok {
		return nil, &errs.ResourceNotFoundError{Resource: name, Scope: project}
	}
	return inst, nil
}

// GetDisk looks the disk up by name across the whole project.
func (c *Client) GetDisk(ctx context.Context, project, name string) (*compute.Disk, error) {
	disks, err := c.ListDisks(ctx, project)
	if err != nil {
		return nil, err
	}
	disk, ok := disks[name]
	if !ok {
		return nil, &errs.ResourceNotFoundError{Resource: name, Scope: project}
	}
	return disk, nil
}

// GetBootDisk returns the boot disk of inst.
func (c *Client) GetBootDisk(ctx context.Context, project string, inst *compute.Instance) (*compute.Disk, error) {
	for _, attached := range inst.Disks {
		if attached.Boot {
			return c.GetDisk(ctx, project, path.Base(attached.Source))
		}
	}
	return nil, &errs.ResourceNotFoundError{
		Resource: fmt.Sprintf("boot disk of %s", inst.Name),
		Scope:    project,
	}
}

// zoneOf extracts the zone name from a zone URL.
func zoneOf(zoneURL string) string { return path.Base(zoneURL) }

func diskModel(project string, d *compute.Disk) forensics.Disk {
	zone := zoneOf(d.Zone)
	return forensics.Disk{
		Name:             d.Name,
		ID:               fmt.Sprintf("projects/%s/zones/%s/disks/%s", project, zone, d.Name),
		Scope:            forensics.Scope{Account: project, Region: zone},
		Region:           zone,
		Type:             path.Base(d.Type),
		SourceSnapshotID: d.SourceSnapshot,
	}
}

// isStatus reports whether err is a googleapi error with the given HTTP
// status code.
func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// diskTypeURL expands a short disk type name to its zonal URL. Full URLs
// pass through unchanged.
func diskTypeURL(project, zone, diskType string) string {
	if strings.Contains(diskType, "/") {
		return diskType
	}
	return fmt.Sprintf("projects/%s/zones/%s/diskTypes/%s", project, zone, diskType)
}
