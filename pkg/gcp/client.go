// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package gcp implements the acquisition pipeline on Google Cloud over the
// Compute Engine v1 API.
package gcp

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
	compute "google.golang.org/api/compute/v1"

	"github.com/evidencelab/cloudcopy/pkg/errs"
	"github.com/evidencelab/cloudcopy/pkg/naming"
	"github.com/evidencelab/cloudcopy/pkg/poll"
)

// Grammar is the RFC1035-style grammar GCE enforces on resource names.
// The length bound lives in MaxLen; the documented pattern expresses it as
// a lookahead, which RE2 has no syntax for.
var Grammar = naming.Grammar{
	MaxLen:    63,
	Pattern:   `^(?=.{1,63}$)[a-z]([-a-z0-9]*[a-z0-9])?$`,
	Matcher:   regexp.MustCompile(`^[a-z]([-a-z0-9]*[a-z0-9])?$`),
	Separator: '-',
}

// Client wraps the Compute Engine service for one run. The session is
// reused for every call within a run and never shared across runs.
type Client struct {
	svc    *compute.Service
	poller *poll.Poller
	log    *logrus.Entry
	now    func() time.Time
}

// NewClient builds a Client on Application Default Credentials.
func NewClient(ctx context.Context, log *logrus.Entry) (*Client, error) {
	svc, err := compute.NewService(ctx)
	if err != nil {
		return nil, &errs.CredentialsConfigurationError{
			Detail: "could not get application default credentials; try: gcloud auth application-default login",
			Cause:  err,
		}
	}
	return &Client{
		svc:    svc,
		poller: poll.New(),
		log:    log,
		now:    time.Now,
	}, nil
}

// zoneOperation adapts a zonal compute operation to poll.Operation.
type zoneOperation struct {
	svc           *compute.Service
	project, zone string
	name          string
	result        *compute.Operation
}

func (o *zoneOperation) Poll(ctx context.Context) (poll.Status, error) {
	op, err := o.svc.ZoneOperations.Get(o.project, o.zone, o.name).Context(ctx).Do()
	if err != nil {
		return poll.StatusFailed, err
	}
	return o.classify(op)
}

func (o *zoneOperation) Result(context.Context) (*compute.Operation, error) {
	return o.result, nil
}

func (o *zoneOperation) classify(op *compute.Operation) (poll.Status, error) {
	if op.Error != nil {
		return poll.StatusFailed, operationError(op.Error)
	}
	switch op.Status {
	case "DONE":
		o.result = op
		return poll.StatusDone, nil
	case "RUNNING":
		return poll.StatusRunning, nil
	default:
		return poll.StatusPending, nil
	}
}

// globalOperation adapts a global compute operation to poll.Operation.
type globalOperation struct {
	svc     *compute.Service
	project string
	name    string
	result  *compute.Operation
}

func (o *globalOperation) Poll(ctx context.Context) (poll.Status, error) {
	op, err := o.svc.GlobalOperations.Get(o.project, o.name).Context(ctx).Do()
	if err != nil {
		return poll.StatusFailed, err
	}
	if op.Error != nil {
		return poll.StatusFailed, operationError(op.Error)
	}
	switch op.Status {
	case "DONE":
		o.result = op
		return poll.StatusDone, nil
	case "RUNNING":
		return poll.StatusRunning, nil
	default:
		return poll.StatusPending, nil
	}
}

func (o *globalOperation) Result(context.Context) (*compute.Operation, error) {
	return o.result, nil
}

func operationError(opErr *compute.OperationError) error {
	if len(opErr.Errors) > 0 {
		e := opErr.Errors[0]
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	return fmt.Errorf("operation reported an error with no detail")
}

// awaitZone blocks until the zonal operation op is terminal.
func (c *Client) awaitZone(ctx context.Context, name, project, zone string, op *compute.Operation) error {
	_, err := poll.Await(ctx, c.poller, name, &zoneOperation{
		svc: c.svc, project: project, zone: zone, name: op.Name,
	})
	return err
}

// awaitGlobal blocks until the global operation op is terminal.
func (c *Client) awaitGlobal(ctx context.Context, name, project string, op *compute.Operation) error {
	_, err := poll.Await(ctx, c.poller, name, &globalOperation{
		svc: c.svc, project: project, name: op.Name,
	})
	return err
}
