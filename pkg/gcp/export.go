// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	cloudbuild "google.golang.org/api/cloudbuild/v1"
	compute "google.golang.org/api/compute/v1"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/forensics"
	"github.com/evidencelab/cloudcopy/pkg/naming"
	"github.com/evidencelab/cloudcopy/pkg/poll"
)

// exportImageWorker runs the daisy image export workflow inside Cloud
// Build.
const exportImageWorker = "gcr.io/compute-image-tools/gce_vm_image_export:release"

// exportTimeout bounds the server-side build, not this process.
const exportTimeout = "86400s"

// CreateImageFromDisk captures disk into a machine image in the disk's
// project. An empty name yields <disk>-<timestamp>.
func (c *Client) CreateImageFromDisk(ctx context.Context, disk forensics.Disk, name string) (string, error) {
	if name == "" {
		name = naming.TimestampName(Grammar, disk.Name, c.now())
	}
	if err := Grammar.Validate(name); err != nil {
		return "", err
	}
	body := &compute.Image{
		Name:       name,
		SourceDisk: fmt.Sprintf("projects/%s/zones/%s/disks/%s", disk.Scope.Account, disk.Region, disk.Name),
	}
	op, err := c.svc.Images.Insert(disk.Scope.Account, body).ForceCreate(true).Context(ctx).Do()
	if err != nil {
		return "", &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	if err := c.awaitGlobal(ctx, "image.insert", disk.Scope.Account, op); err != nil {
		return "", &errs.ResourceCreationError{Resource: name, Cause: err}
	}
	return name, nil
}

// DeleteImage deletes the named image.
func (c *Client) DeleteImage(ctx context.Context, project, name string) error {
	op, err := c.svc.Images.Delete(project, name).Context(ctx).Do()
	if err != nil {
		return &errs.ResourceDeletionError{Resource: name, Cause: err}
	}
	if err := c.awaitGlobal(ctx, "image.delete", project, op); err != nil {
		return &errs.ResourceDeletionError{Resource: name, Cause: err}
	}
	return nil
}

// EnsureBucket returns after the bucket exists in project, creating it if
// absent.
func (c *Client) EnsureBucket(ctx context.Context, project, bucket string) error {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return &errs.CredentialsConfigurationError{
			Detail: "could not build a storage client from application default credentials",
			Cause:  err,
		}
	}
	defer client.Close()

	_, err = client.Bucket(bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gcs.ErrBucketNotExist) {
		return fmt.Errorf("failed to stat bucket %s: %w", bucket, err)
	}
	if err := client.Bucket(bucket).Create(ctx, project, nil); err != nil {
		return &errs.ResourceCreationError{Resource: bucket, Cause: err}
	}
	c.log.WithField("bucket", bucket).Info("Created export bucket")
	return nil
}

// ExportDisk images the disk and exports the image as a tarball to
// gs://<bucket>/<image>.tar.gz through a Cloud Build run. The bucket is
// created when absent; the intermediate image is kept for chain of
// custody. Returns the object URI.
func (c *Client) ExportDisk(ctx context.Context, disk forensics.Disk, bucket, imageName string) (string, error) {
	image, err := c.CreateImageFromDisk(ctx, disk, imageName)
	if err != nil {
		return "", err
	}
	if err := c.EnsureBucket(ctx, disk.Scope.Account, bucket); err != nil {
		return "", err
	}

	uri := fmt.Sprintf("gs://%s/%s.tar.gz", strings.TrimSuffix(bucket, "/"), image)
	if err := c.runImageExport(ctx, disk.Scope.Account, image, uri); err != nil {
		return "", err
	}
	c.log.WithField("image", image).WithField("uri", uri).Info("Disk exported")
	return uri, nil
}

func (c *Client) runImageExport(ctx context.Context, project, image, destinationURI string) error {
	svc, err := cloudbuild.NewService(ctx)
	if err != nil {
		return &errs.CredentialsConfigurationError{
			Detail: "could not build a cloud build client from application default credentials",
			Cause:  err,
		}
	}

	build := &cloudbuild.Build{
		Timeout: exportTimeout,
		Steps: []*cloudbuild.BuildStep{{
			Name: exportImageWorker,
			Args: []string{
				"-source_image=" + image,
				"-destination_uri=" + destinationURI,
				"-client_id=api",
			},
			Env: []string{"BUILD_ID=$BUILD_ID"},
		}},
	}
	op, err := svc.Projects.Builds.Create(project, build).Context(ctx).Do()
	if err != nil {
		return &errs.TransferCreationError{Subject: image, Cause: err}
	}

	_, err = poll.Await(ctx, c.poller, "build.imageExport", &buildOperation{svc: svc, name: op.Name})
	if err != nil {
		return &errs.TransferExecutionError{Subject: image, Status: "FAILURE", Cause: err}
	}
	return nil
}

// buildOperation adapts a Cloud Build long-running operation to
// poll.Operation.
type buildOperation struct {
	svc    *cloudbuild.Service
	name   string
	result *cloudbuild.Operation
}

func (o *buildOperation) Poll(ctx context.Context) (poll.Status, error) {
	op, err := o.svc.Operations.Get(o.name).Context(ctx).Do()
	if err != nil {
		return poll.StatusFailed, err
	}
	if !op.Done {
		return poll.StatusRunning, nil
	}
	if op.Error != nil {
		return poll.StatusFailed, fmt.Errorf("build failed: %s", op.Error.Message)
	}
	o.result = op
	return poll.StatusDone, nil
}

func (o *buildOperation) Result(context.Context) (*cloudbuild.Operation, error) {
	return o.result, nil
}
