// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/naming"
	"github.com/evidencelab/cloudcopy/pkg/poll"
)

// sasDurationSeconds is the lifetime of the read SAS granted on the
// snapshot for the server-side copy.
const sasDurationSeconds int32 = 3600

// CreateDiskViaStaging bridges a subscription or region boundary: a read
// SAS is granted on the snapshot, its content is copied server-side into a
// page blob in a temporary storage account next to the destination, and
// the disk is imported from that blob.
//
// The storage account name is a pure function of the source disk identity,
// so two concurrent copies of the same source contend on it; the staging
// area is torn down before return either way. The SAS is revoked and the
// account deleted on both the success and the failure path.
func (p *Provider) CreateDiskViaStaging(ctx context.Context, snap forensics.Snapshot, dst forensics.Scope, diskType, name string) (forensics.Disk, error) {
	t := &stagingTransfer{p: p, snap: snap, dst: dst}
	if t.dst.Region == "" {
		t.dst.Region = snap.Region
	}
	if t.dst.Group == "" {
		t.dst.Group = snap.Scope.Group
	}
	var err error
	if t.src, err = p.client(snap.Scope.Account); err != nil {
		return forensics.Disk{}, err
	}
	if t.dstClient, err = p.client(t.dst.Account); err != nil {
		return forensics.Disk{}, err
	}
	return runStagingTransfer(ctx, t, diskType, name)
}

// stagingBackend is the step set of one staged copy, split out so the
// sequencing (in particular the guaranteed teardown) is testable without
// the ARM wire.
type stagingBackend interface {
	createAccount(ctx context.Context) error
	deleteAccount()
	createContainer(ctx context.Context) error
	grantURI(ctx context.Context) error
	revokeURI()
	startCopy(ctx context.Context) error
	pollCopy(ctx context.Context) error
	createDisk(ctx context.Context, diskType, name string) (forensics.Disk, error)
}

// runStagingTransfer drives the staged copy through its steps. The account
// delete runs on every exit path after the account was created; the SAS
// revoke runs on every exit path after the grant, before the delete.
func runStagingTransfer(ctx context.Context, b stagingBackend, diskType, name string) (forensics.Disk, error) {
	if err := b.createAccount(ctx); err != nil {
		return forensics.Disk{}, err
	}
	defer b.deleteAccount()

	if err := b.createContainer(ctx); err != nil {
		return forensics.Disk{}, err
	}

	if err := b.grantURI(ctx); err != nil {
		return forensics.Disk{}, err
	}
	defer b.revokeURI()

	if err := b.startCopy(ctx); err != nil {
		return forensics.Disk{}, err
	}
	if err := b.pollCopy(ctx); err != nil {
		return forensics.Disk{}, err
	}
	return b.createDisk(ctx, diskType, name)
}

// stagingTransfer holds the intermediate state of one staged copy.
type stagingTransfer struct {
	p         *Provider
	snap      forensics.Snapshot
	dst       forensics.Scope
	src       *Client
	dstClient *Client

	accountName string
	accountID   string
	accountKey  string
	container   string
	blobURL     string
	sasURI      string
}

func (t *stagingTransfer) log() *logrus.Entry {
	return t.p.log.WithField("snapshot", t.snap.Name)
}

func (t *stagingTransfer) createAccount(ctx context.Context) error {
	c := t.dstClient
	accountName, err := naming.AccountName(t.snap.SourceDisk.ID)
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}

	if err := t.p.EnsureResourceGroup(ctx, forensics.Scope{
		Account: c.Subscription, Region: t.dst.Region, Group: t.dst.Group,
	}); err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}

	lro, err := c.StorageAccountsClient.BeginCreate(ctx, t.dst.Group, accountName, armstorage.AccountCreateParameters{
		Kind:     to.Ptr(armstorage.KindStorageV2),
		Location: to.Ptr(t.dst.Region),
		SKU:      &armstorage.SKU{Name: to.Ptr(armstorage.SKUNameStandardLRS)},
	}, nil)
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}
	resp, err := await(ctx, t.p.poller, "storageaccount.create", lro)
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}
	t.accountName = accountName
	t.accountID = *resp.ID

	keys, err := c.StorageAccountsClient.ListKeys(ctx, t.dst.Group, accountName, nil)
	if err != nil || len(keys.Keys) == 0 || keys.Keys[0].Value == nil {
		return &errs.TransferCreationError{
			Subject: t.snap.Name,
			Cause:   fmt.Errorf("failed to list keys of storage account %s: %w", accountName, err),
		}
	}
	t.accountKey = *keys.Keys[0].Value
	t.log().WithField("account", accountName).Info("Staging storage account created")
	return nil
}

// deleteAccount runs on every exit path once the account exists. The
// delete is synchronous; a failure here is reported as a
// ResourceDeletionError and swallowed so it never masks the transfer
// outcome.
func (t *stagingTransfer) deleteAccount() {
	if t.accountName == "" {
		return
	}
	_, err := t.dstClient.StorageAccountsClient.Delete(context.Background(), t.dst.Group, t.accountName, nil)
	t.reportAccountDelete(err)
}

func (t *stagingTransfer) reportAccountDelete(err error) {
	if err != nil {
		t.log().WithField("account", t.accountName).
			WithError(&errs.ResourceDeletionError{Resource: t.accountName, Cause: err}).
			Error("Could not delete the staging storage account; it is left behind")
		return
	}
	t.log().WithField("account", t.accountName).Info("Staging storage account deleted")
}

func (t *stagingTransfer) blobClient() (*azblob.Client, error) {
	cred, err := azblob.NewSharedKeyCredential(t.accountName, t.accountKey)
	if err != nil {
		return nil, err
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", t.accountName)
	return azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
}

func (t *stagingTransfer) createContainer(ctx context.Context) error {
	client, err := t.blobClient()
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}
	container := t.accountName + "-container"
	if _, err := client.CreateContainer(ctx, container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return &errs.TransferCreationError{
				Subject: t.snap.Name,
				Cause:   fmt.Errorf("failed to create container %s: %w", container, err),
			}
		}
	}
	t.container = container
	return nil
}

func (t *stagingTransfer) grantURI(ctx context.Context) error {
	lro, err := t.src.SnapshotsClient.BeginGrantAccess(ctx, t.snap.Scope.Group, t.snap.Name, armcompute.GrantAccessData{
		Access:            to.Ptr(armcompute.AccessLevelRead),
		DurationInSeconds: to.Ptr(sasDurationSeconds),
	}, nil)
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}
	resp, err := await(ctx, t.p.poller, "snapshot.grantAccess", lro)
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}
	if resp.AccessSAS == nil || *resp.AccessSAS == "" {
		return &errs.TransferCreationError{
			Subject: t.snap.Name,
			Cause:   fmt.Errorf("grant access returned an empty SAS"),
		}
	}
	t.sasURI = *resp.AccessSAS
	return nil
}

// revokeURI runs on every exit path once the SAS was granted. Like the
// account delete, a failure is logged loudly and swallowed.
func (t *stagingTransfer) revokeURI() {
	if t.sasURI == "" {
		return
	}
	ctx := context.Background()
	lro, err := t.src.SnapshotsClient.BeginRevokeAccess(ctx, t.snap.Scope.Group, t.snap.Name, nil)
	if err == nil {
		_, err = await(ctx, t.p.poller, "snapshot.revokeAccess", lro)
	}
	if err != nil {
		t.log().WithError(err).Error("Could not revoke the snapshot SAS; it expires on its own")
	}
}

func (t *stagingTransfer) startCopy(ctx context.Context) error {
	client, err := t.blobClient()
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}
	blobName := t.snap.Name + ".vhd"
	blobClient := client.ServiceClient().NewContainerClient(t.container).NewBlobClient(blobName)
	if _, err := blobClient.StartCopyFromURL(ctx, t.sasURI, nil); err != nil {
		return &errs.TransferCreationError{
			Subject: t.snap.Name,
			Cause:   fmt.Errorf("failed to start the blob copy: %w", err),
		}
	}
	t.blobURL = blobClient.URL()
	t.log().WithField("blob", blobName).Info("Server-side blob copy started")
	return nil
}

func (t *stagingTransfer) pollCopy(ctx context.Context) error {
	client, err := t.blobClient()
	if err != nil {
		return &errs.TransferCreationError{Subject: t.snap.Name, Cause: err}
	}
	blobClient := client.ServiceClient().NewContainerClient(t.container).NewBlobClient(t.snap.Name + ".vhd")

	op := &blobCopyOperation{blob: blobClient}
	if _, err := poll.Await(ctx, t.p.poller, "blob.copy", op); err != nil {
		return copyTerminated(t.snap.Name, op.status, err)
	}
	return nil
}

// copyTerminated reports a copy the service aborted or failed as a
// TransferExecutionError carrying its terminal status; any other await
// failure passes through.
func copyTerminated(subject string, status blob.CopyStatusType, err error) error {
	switch status {
	case blob.CopyStatusTypeAborted, blob.CopyStatusTypeFailed:
		return &errs.TransferExecutionError{Subject: subject, Status: string(status), Cause: err}
	default:
		return err
	}
}

func (t *stagingTransfer) createDisk(ctx context.Context, diskType, name string) (forensics.Disk, error) {
	c := t.dstClient
	name, sku, err := t.p.copyDiskParams(t.snap, diskType, name)
	if err != nil {
		return forensics.Disk{}, err
	}

	lro, err := c.DisksClient.BeginCreateOrUpdate(ctx, t.dst.Group, name, armcompute.Disk{
		Location: to.Ptr(t.dst.Region),
		SKU:      &armcompute.DiskSKU{Name: to.Ptr(sku)},
		Properties: &armcompute.DiskProperties{
			CreationData: &armcompute.CreationData{
				CreateOption:     to.Ptr(armcompute.DiskCreateOptionImport),
				SourceURI:        to.Ptr(t.blobURL),
				StorageAccountID: to.Ptr(t.accountID),
			},
		},
	}, nil)
	if err != nil {
		return forensics.Disk{}, &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	resp, err := await(ctx, t.p.poller, "disk.import", lro)
	if err != nil {
		return forensics.Disk{}, &errs.ResourceCreationError{Resource: name, Cause: err}
	}

	return forensics.Disk{
		Name:             name,
		ID:               *resp.ID,
		Scope:            forensics.Scope{Account: c.Subscription, Region: t.dst.Region, Group: t.dst.Group},
		Region:           t.dst.Region,
		Type:             string(sku),
		SourceSnapshotID: t.snap.ID,
	}, nil
}

// blobCopyOperation adapts the blob copy status poll to poll.Operation.
type blobCopyOperation struct {
	blob   *blob.Client
	status blob.CopyStatusType
}

func (o *blobCopyOperation) Poll(ctx context.Context) (poll.Status, error) {
	props, err := o.blob.GetProperties(ctx, nil)
	if err != nil {
		return poll.StatusFailed, err
	}
	if props.CopyStatus == nil {
		return poll.StatusPending, nil
	}
	o.status = *props.CopyStatus
	switch o.status {
	case blob.CopyStatusTypeSuccess:
		return poll.StatusDone, nil
	case blob.CopyStatusTypePending:
		return poll.StatusRunning, nil
	default:
		// Aborted or failed; surface the service's description.
		desc := ""
		if props.CopyStatusDescription != nil {
			desc = ": " + *props.CopyStatusDescription
		}
		return poll.StatusFailed, fmt.Errorf("blob copy terminated with status %s%s", o.status, desc)
	}
}

func (o *blobCopyOperation) Result(context.Context) (blob.CopyStatusType, error) {
	return o.status, nil
}
