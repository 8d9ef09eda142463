// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package azure implements the acquisition pipeline on Azure over the ARM
// SDK. Copies crossing a subscription or region boundary are staged
// through a temporary storage account.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/evidencelab/cloudcopy/pkg/poll"
)

// Client aggregates the typed ARM clients for one subscription. Typed
// clients give type-safe CRUD per resource kind; new resource kinds get a
// new field here rather than going through a generic pipeline.
type Client struct {
	Subscription            string
	DisksClient             *armcompute.DisksClient
	SnapshotsClient         *armcompute.SnapshotsClient
	VirtualMachinesClient   *armcompute.VirtualMachinesClient
	StorageAccountsClient   *armstorage.AccountsClient
	ResourceGroupsClient    *armresources.ResourceGroupsClient
	VirtualNetworksClient   *armnetwork.VirtualNetworksClient
	SubnetsClient           *armnetwork.SubnetsClient
	PublicIPAddressesClient *armnetwork.PublicIPAddressesClient
	InterfacesClient        *armnetwork.InterfacesClient
	credential              azcore.TokenCredential
}

// NewClient builds the typed clients for one subscription.
func NewClient(subscription string, cred azcore.TokenCredential) (*Client, error) {
	clientOptions := &arm.ClientOptions{}

	disksClient, err := armcompute.NewDisksClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	snapshotsClient, err := armcompute.NewSnapshotsClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	virtualMachinesClient, err := armcompute.NewVirtualMachinesClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	storageAccountsClient, err := armstorage.NewAccountsClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	resourceGroupsClient, err := armresources.NewResourceGroupsClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	virtualNetworksClient, err := armnetwork.NewVirtualNetworksClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	subnetsClient, err := armnetwork.NewSubnetsClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	publicIPAddressesClient, err := armnetwork.NewPublicIPAddressesClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	interfacesClient, err := armnetwork.NewInterfacesClient(subscription, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	return &Client{
		Subscription:            subscription,
		DisksClient:             disksClient,
		SnapshotsClient:         snapshotsClient,
		VirtualMachinesClient:   virtualMachinesClient,
		StorageAccountsClient:   storageAccountsClient,
		ResourceGroupsClient:    resourceGroupsClient,
		VirtualNetworksClient:   virtualNetworksClient,
		SubnetsClient:           subnetsClient,
		PublicIPAddressesClient: publicIPAddressesClient,
		InterfacesClient:        interfacesClient,
		credential:              cred,
	}, nil
}

// armOperation adapts an ARM long-running operation to poll.Operation.
// The SDK poller reports Done even for failed operations; the failure
// surfaces from Result.
type armOperation[T any] struct {
	poller *runtime.Poller[T]
}

func (o *armOperation[T]) Poll(ctx context.Context) (poll.Status, error) {
	if o.poller.Done() {
		return poll.StatusDone, nil
	}
	if _, err := o.poller.Poll(ctx); err != nil {
		return poll.StatusFailed, err
	}
	if o.poller.Done() {
		return poll.StatusDone, nil
	}
	return poll.StatusRunning, nil
}

func (o *armOperation[T]) Result(ctx context.Context) (T, error) {
	return o.poller.Result(ctx)
}

// await drives an ARM poller through the shared polling loop.
func await[T any](ctx context.Context, p *poll.Poller, name string, lro *runtime.Poller[T]) (T, error) {
	return poll.Await[T](ctx, p, name, &armOperation[T]{poller: lro})
}

// isStatus reports whether err is an ARM response with the given HTTP
// status code.
func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

func isNotFound(err error) bool { return isStatus(err, http.StatusNotFound) }

// resourceGroupOf extracts the resource group from an ARM resource ID.
func resourceGroupOf(resourceID string) (string, error) {
	parts := strings.Split(strings.Trim(resourceID, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if strings.EqualFold(parts[i], "resourceGroups") {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("no resource group in resource ID %q", resourceID)
}
