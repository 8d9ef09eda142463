// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package azure

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/sirupsen/logrus"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/naming"
	"github.com/evidencelab/cloudcopy/pkg/poll"
)

// DiskGrammar is the managed-disk naming grammar. Dashes are not in the
// grammar, so assembled names have them rewritten to underscores.
var DiskGrammar = naming.Grammar{
	MaxLen:        80,
	Pattern:       `^[\w]{1,80}$`,
	Matcher:       regexp.MustCompile(`^[\w]+$`),
	Separator:     '_',
	RewriteDashes: true,
}

// SnapshotGrammar is the snapshot naming grammar. The length bound lives
// in MaxLen; the documented pattern expresses it as a lookahead, which RE2
// has no syntax for.
var SnapshotGrammar = naming.Grammar{
	MaxLen:    80,
	Pattern:   `^(?=.{1,80}$)[a-zA-Z0-9]([\w,-]*[\w])?$`,
	Matcher:   regexp.MustCompile(`^[a-zA-Z0-9]([\w,-]*[\w])?$`),
	Separator: '_',
}

const (
	diskCopyPrefix = "evidence"
	defaultDiskSKU = armcompute.DiskStorageAccountTypesStandardSSDLRS
)

// Provider implements the pipeline on Azure. Typed clients are built per
// subscription on first use; the pipeline is single-run and synchronous so
// the cache needs no locking.
type Provider struct {
	cred       azcore.TokenCredential
	defaultSub string
	clients    map[string]*Client
	poller     *poll.Poller
	log        *logrus.Entry
	now        func() time.Time
}

var _ forensics.Provider = (*Provider)(nil)
var _ forensics.VMProvisioner = (*Provider)(nil)

// NewProvider builds a Provider operating in defaultSub unless a scope
// names another subscription.
func NewProvider(defaultSub string, cred azcore.TokenCredential, log *logrus.Entry) *Provider {
	return &Provider{
		cred:       cred,
		defaultSub: defaultSub,
		clients:    make(map[string]*Client),
		poller:     poll.New(),
		log:        log,
		now:        time.Now,
	}
}

func (p *Provider) client(subscription string) (*Client, error) {
	if subscription == "" {
		subscription = p.defaultSub
	}
	if c, ok := p.clients[subscription]; ok {
		return c, nil
	}
	c, err := NewClient(subscription, p.cred)
	if err != nil {
		return nil, fmt.Errorf("failed to build clients for subscription %s: %w", subscription, err)
	}
	p.clients[subscription] = c
	return c, nil
}

// getDisk looks the disk up by name across the subscription, or within
// scope.Group when set.
func (p *Provider) getDisk(ctx context.Context, scope forensics.Scope, name string) (*armcompute.Disk, error) {
	c, err := p.client(scope.Account)
	if err != nil {
		return nil, err
	}
	if scope.Group != "" {
		resp, err := c.DisksClient.Get(ctx, scope.Group, name, nil)
		if err != nil {
			if isNotFound(err) {
				return nil, &errs.ResourceNotFoundError{Resource: name, Scope: scope.String(), Cause: err}
			}
			return nil, fmt.Errorf("failed to get disk %s: %w", name, err)
		}
		return &resp.Disk, nil
	}

	pager := c.DisksClient.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list disks in %s: %w", c.Subscription, err)
		}
		for _, disk := range page.Value {
			if disk.Name != nil && *disk.Name == name {
				return disk, nil
			}
		}
	}
	return nil, &errs.ResourceNotFoundError{Resource: name, Scope: scope.String()}
}

// getInstance looks the VM up by name across the subscription, or within
// scope.Group when set.
func (p *Provider) getInstance(ctx context.Context, scope forensics.Scope, name string) (*armcompute.VirtualMachine, error) {
	c, err := p.client(scope.Account)
	if err != nil {
		return nil, err
	}
	if scope.Group != "" {
		resp, err := c.VirtualMachinesClient.Get(ctx, scope.Group, name, nil)
		if err != nil {
			if isNotFound(err) {
				return nil, &errs.ResourceNotFoundError{Resource: name, Scope: scope.String(), Cause: err}
			}
			return nil, fmt.Errorf("failed to get virtual machine %s: %w", name, err)
		}
		return &resp.VirtualMachine, nil
	}

	pager := c.VirtualMachinesClient.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list virtual machines in %s: %w", c.Subscription, err)
		}
		for _, vm := range page.Value {
			if vm.Name != nil && *vm.Name == name {
				return vm, nil
			}
		}
	}
	return nil, &errs.ResourceNotFoundError{Resource: name, Scope: scope.String()}
}

func (p *Provider) diskModel(subscription string, d *armcompute.Disk) (forensics.Disk, error) {
	group, err := resourceGroupOf(*d.ID)
	if err != nil {
		return forensics.Disk{}, err
	}
	model := forensics.Disk{
		Name:   *d.Name,
		ID:     *d.ID,
		Scope:  forensics.Scope{Account: subscription, Region: *d.Location, Group: group},
		Region: *d.Location,
	}
	if d.SKU != nil && d.SKU.Name != nil {
		model.Type = string(*d.SKU.Name)
	}
	if d.Properties != nil && d.Properties.CreationData != nil && d.Properties.CreationData.SourceResourceID != nil {
		model.SourceSnapshotID = *d.Properties.CreationData.SourceResourceID
	}
	return model, nil
}

// ResolveSourceDisk resolves the selector to a disk; an instance selector
// resolves through the instance's OS disk.
func (p *Provider) ResolveSourceDisk(ctx context.Context, scope forensics.Scope, sel forensics.SourceSelector) (forensics.Disk, error) {
	sub := scope.Account
	if sub == "" {
		sub = p.defaultSub
	}
	if sel.DiskName != "" {
		d, err := p.getDisk(ctx, scope, sel.DiskName)
		if err != nil {
			return forensics.Disk{}, err
		}
		return p.diskModel(sub, d)
	}

	vm, err := p.getInstance(ctx, scope, sel.InstanceName)
	if err != nil {
		return forensics.Disk{}, err
	}
	if vm.Properties == nil || vm.Properties.StorageProfile == nil ||
		vm.Properties.StorageProfile.OSDisk == nil ||
		vm.Properties.StorageProfile.OSDisk.ManagedDisk == nil {
		return forensics.Disk{}, &errs.ResourceNotFoundError{
			Resource: fmt.Sprintf("OS disk of %s", sel.InstanceName),
			Scope:    scope.String(),
		}
	}
	osDiskName := path.Base(*vm.Properties.StorageProfile.OSDisk.ManagedDisk.ID)
	d, err := p.getDisk(ctx, scope, osDiskName)
	if err != nil {
		return forensics.Disk{}, err
	}
	return p.diskModel(sub, d)
}

// CreateSnapshot snapshots disk in its own resource group. An empty name
// yields <disk>_<timestamp>. Snapshot creation is not idempotent here:
// a name conflict is a creation error.
func (p *Provider) CreateSnapshot(ctx context.Context, disk forensics.Disk, name string) (forensics.Snapshot, bool, error) {
	if name == "" {
		name = naming.TimestampName(SnapshotGrammar, disk.Name, p.now())
		name = strings.ReplaceAll(name, "-", "_")
	}
	if err := SnapshotGrammar.Validate(name); err != nil {
		return forensics.Snapshot{}, false, err
	}

	c, err := p.client(disk.Scope.Account)
	if err != nil {
		return forensics.Snapshot{}, false, err
	}

	lro, err := c.SnapshotsClient.BeginCreateOrUpdate(ctx, disk.Scope.Group, name, armcompute.Snapshot{
		Location: to.Ptr(disk.Region),
		Properties: &armcompute.SnapshotProperties{
			CreationData: &armcompute.CreationData{
				CreateOption:     to.Ptr(armcompute.DiskCreateOptionCopy),
				SourceResourceID: to.Ptr(disk.ID),
			},
		},
	}, nil)
	if err != nil {
		return forensics.Snapshot{}, false, &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	resp, err := await(ctx, p.poller, "snapshot.create", lro)
	if err != nil {
		return forensics.Snapshot{}, false, &errs.ResourceCreationError{Resource: name, Cause: err}
	}

	return forensics.Snapshot{
		Name:       name,
		ID:         *resp.ID,
		Scope:      disk.Scope,
		Region:     disk.Region,
		SourceDisk: disk,
	}, true, nil
}

// DeleteSnapshot deletes snap. Deleting an absent snapshot is an error,
// not an idempotent success; the not-found cause stays on the chain so
// callers that carve that case out can match it.
func (p *Provider) DeleteSnapshot(ctx context.Context, snap forensics.Snapshot) error {
	c, err := p.client(snap.Scope.Account)
	if err != nil {
		return err
	}
	lro, err := c.SnapshotsClient.BeginDelete(ctx, snap.Scope.Group, snap.Name, nil)
	if err != nil {
		return snapshotDeleteError(snap, err)
	}
	if _, err := await(ctx, p.poller, "snapshot.delete", lro); err != nil {
		return snapshotDeleteError(snap, err)
	}
	return nil
}

func snapshotDeleteError(snap forensics.Snapshot, err error) error {
	if isNotFound(err) {
		err = &errs.ResourceNotFoundError{Resource: snap.Name, Scope: snap.Scope.Account, Cause: err}
	}
	return &errs.ResourceDeletionError{Resource: snap.Name, Cause: err}
}

// DirectlyReachable reports whether dst can clone snap without staging:
// same subscription and same region. An empty destination region means
// the snapshot's own region.
func (p *Provider) DirectlyReachable(_ context.Context, snap forensics.Snapshot, dst forensics.Scope) (bool, error) {
	dstSub := dst.Account
	if dstSub == "" {
		dstSub = p.defaultSub
	}
	if dstSub != snap.Scope.Account {
		return false, nil
	}
	return dst.Region == "" || strings.EqualFold(dst.Region, snap.Region), nil
}

// CreateDiskFromSnapshot clones snap into dst. An empty name yields the
// deterministic evidence_<source>_<crc32>_copy name.
func (p *Provider) CreateDiskFromSnapshot(ctx context.Context, snap forensics.Snapshot, dst forensics.Scope, diskType, name string) (forensics.Disk, error) {
	name, sku, err := p.copyDiskParams(snap, diskType, name)
	if err != nil {
		return forensics.Disk{}, err
	}
	region := dst.Region
	if region == "" {
		region = snap.Region
	}
	group := dst.Group
	if group == "" {
		group = snap.Scope.Group
	}

	c, err := p.client(dst.Account)
	if err != nil {
		return forensics.Disk{}, err
	}

	lro, err := c.DisksClient.BeginCreateOrUpdate(ctx, group, name, armcompute.Disk{
		Location: to.Ptr(region),
		SKU:      &armcompute.DiskSKU{Name: to.Ptr(sku)},
		Properties: &armcompute.DiskProperties{
			CreationData: &armcompute.CreationData{
				CreateOption:     to.Ptr(armcompute.DiskCreateOptionCopy),
				SourceResourceID: to.Ptr(snap.ID),
			},
		},
	}, nil)
	if err != nil {
		return forensics.Disk{}, &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	resp, err := await(ctx, p.poller, "disk.create", lro)
	if err != nil {
		return forensics.Disk{}, &errs.ResourceCreationError{Resource: name, Cause: err}
	}

	return forensics.Disk{
		Name:             name,
		ID:               *resp.ID,
		Scope:            forensics.Scope{Account: c.Subscription, Region: region, Group: group},
		Region:           region,
		Type:             string(sku),
		SourceSnapshotID: snap.ID,
	}, nil
}

func (p *Provider) copyDiskParams(snap forensics.Snapshot, diskType, name string) (string, armcompute.DiskStorageAccountTypes, error) {
	if name == "" {
		var err error
		name, err = naming.CopyName(DiskGrammar, snap.Scope.Account, snap.SourceDisk.ID, snap.Name, diskCopyPrefix)
		if err != nil {
			return "", "", err
		}
	} else if err := DiskGrammar.Validate(name); err != nil {
		return "", "", err
	}
	sku := defaultDiskSKU
	if diskType != "" {
		sku = armcompute.DiskStorageAccountTypes(diskType)
	}
	return name, sku, nil
}
