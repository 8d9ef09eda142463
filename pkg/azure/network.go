// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
)

const (
	vnetAddressSpace    = "10.0.0.0/16"
	subnetAddressPrefix = "10.0.0.0/24"
)

// EnsureResourceGroup returns after scope.Group exists in scope.Account,
// creating it in scope.Region when absent.
func (p *Provider) EnsureResourceGroup(ctx context.Context, scope forensics.Scope) error {
	c, err := p.client(scope.Account)
	if err != nil {
		return err
	}
	exists, err := c.ResourceGroupsClient.CheckExistence(ctx, scope.Group, nil)
	if err != nil {
		return fmt.Errorf("failed to check resource group %s: %w", scope.Group, err)
	}
	if exists.Success {
		return nil
	}
	_, err = c.ResourceGroupsClient.CreateOrUpdate(ctx, scope.Group, armresources.ResourceGroup{
		Location: to.Ptr(scope.Region),
	}, nil)
	if err != nil {
		return &errs.ResourceCreationError{Resource: scope.Group, Cause: err}
	}
	p.log.WithField("group", scope.Group).Info("Resource group created")
	return nil
}

// ensureNetworkInterface builds the network path for an analysis VM:
// virtual network, subnet, public IP and NIC, each reused when it already
// exists. Returns the NIC resource ID.
func (p *Provider) ensureNetworkInterface(ctx context.Context, scope forensics.Scope, vmName string) (string, error) {
	c, err := p.client(scope.Account)
	if err != nil {
		return "", err
	}

	subnetID, err := p.ensureVirtualNetwork(ctx, c, scope, vmName)
	if err != nil {
		return "", err
	}
	ipID, err := p.ensurePublicIP(ctx, c, scope, vmName)
	if err != nil {
		return "", err
	}

	nicName := vmName + "-nic"
	if nic, err := c.InterfacesClient.Get(ctx, scope.Group, nicName, nil); err == nil {
		return *nic.ID, nil
	} else if !isNotFound(err) {
		return "", fmt.Errorf("failed to get network interface %s: %w", nicName, err)
	}

	lro, err := c.InterfacesClient.BeginCreateOrUpdate(ctx, scope.Group, nicName, armnetwork.Interface{
		Location: to.Ptr(scope.Region),
		Properties: &armnetwork.InterfacePropertiesFormat{
			IPConfigurations: []*armnetwork.InterfaceIPConfiguration{{
				Name: to.Ptr("ipconfig1"),
				Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
					Subnet:                    &armnetwork.Subnet{ID: to.Ptr(subnetID)},
					PrivateIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodDynamic),
					PublicIPAddress:           &armnetwork.PublicIPAddress{ID: to.Ptr(ipID)},
				},
			}},
		},
	}, nil)
	if err != nil {
		return "", &errs.ResourceCreationError{Resource: nicName, Cause: err}
	}
	resp, err := await(ctx, p.poller, "networkinterface.create", lro)
	if err != nil {
		return "", &errs.ResourceCreationError{Resource: nicName, Cause: err}
	}
	return *resp.ID, nil
}

func (p *Provider) ensureVirtualNetwork(ctx context.Context, c *Client, scope forensics.Scope, vmName string) (string, error) {
	vnetName := vmName + "-vnet"
	subnetName := vmName + "-subnet"

	_, err := c.VirtualNetworksClient.Get(ctx, scope.Group, vnetName, nil)
	if isNotFound(err) {
		lro, err := c.VirtualNetworksClient.BeginCreateOrUpdate(ctx, scope.Group, vnetName, armnetwork.VirtualNetwork{
			Location: to.Ptr(scope.Region),
			Properties: &armnetwork.VirtualNetworkPropertiesFormat{
				AddressSpace: &armnetwork.AddressSpace{
					AddressPrefixes: []*string{to.Ptr(vnetAddressSpace)},
				},
				Subnets: []*armnetwork.Subnet{{
					Name: to.Ptr(subnetName),
					Properties: &armnetwork.SubnetPropertiesFormat{
						AddressPrefix: to.Ptr(subnetAddressPrefix),
					},
				}},
			},
		}, nil)
		if err != nil {
			return "", &errs.ResourceCreationError{Resource: vnetName, Cause: err}
		}
		if _, err := await(ctx, p.poller, "virtualnetwork.create", lro); err != nil {
			return "", &errs.ResourceCreationError{Resource: vnetName, Cause: err}
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to get virtual network %s: %w", vnetName, err)
	}

	subnet, err := c.SubnetsClient.Get(ctx, scope.Group, vnetName, subnetName, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get subnet %s: %w", subnetName, err)
	}
	return *subnet.ID, nil
}

func (p *Provider) ensurePublicIP(ctx context.Context, c *Client, scope forensics.Scope, vmName string) (string, error) {
	ipName := vmName + "-ip"
	if ip, err := c.PublicIPAddressesClient.Get(ctx, scope.Group, ipName, nil); err == nil {
		return *ip.ID, nil
	} else if !isNotFound(err) {
		return "", fmt.Errorf("failed to get public IP %s: %w", ipName, err)
	}

	lro, err := c.PublicIPAddressesClient.BeginCreateOrUpdate(ctx, scope.Group, ipName, armnetwork.PublicIPAddress{
		Location: to.Ptr(scope.Region),
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{
			PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
		},
	}, nil)
	if err != nil {
		return "", &errs.ResourceCreationError{Resource: ipName, Cause: err}
	}
	resp, err := await(ctx, p.poller, "publicip.create", lro)
	if err != nil {
		return "", &errs.ResourceCreationError{Resource: ipName, Cause: err}
	}
	return *resp.ID, nil
}
