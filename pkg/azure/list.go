// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package azure

import (
	"context"
	"fmt"
	"sort"

	"github.com/evidencelab/cloudcopy/pkg/forensics"
)

// ListInstanceNames returns the names of all VMs in the scope's
// subscription, sorted.
func (p *Provider) ListInstanceNames(ctx context.Context, scope forensics.Scope) ([]string, error) {
	c, err := p.client(scope.Account)
	if err != nil {
		return nil, err
	}
	var names []string
	pager := c.VirtualMachinesClient.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list virtual machines in %s: %w", c.Subscription, err)
		}
		for _, vm := range page.Value {
			if vm.Name != nil {
				names = append(names, *vm.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListDiskNames returns the names of all managed disks in the scope's
// subscription, sorted.
func (p *Provider) ListDiskNames(ctx context.Context, scope forensics.Scope) ([]string, error) {
	c, err := p.client(scope.Account)
	if err != nil {
		return nil, err
	}
	var names []string
	pager := c.DisksClient.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list disks in %s: %w", c.Subscription, err)
		}
		for _, disk := range page.Value {
			if disk.Name != nil {
				names = append(names, *disk.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
