// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package errs defines the error taxonomy shared by all providers.
//
// Every provider-level failure (HTTP status, SDK error) is converted into
// exactly one of these kinds at the component boundary where it occurred,
// with the original cause attached for errors.Is/errors.As chains.
package errs

import "fmt"

// InvalidNameError reports a resource name that violates the destination
// provider's naming grammar.
type InvalidNameError struct {
	Name    string
	Pattern string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("name %q does not comply with %s", e.Name, e.Pattern)
}

// ResourceNotFoundError reports a resource that does not exist in the
// queried scope. Callers that treat absence as a signal (get-or-create)
// match on this type; anything else is a genuine fault.
type ResourceNotFoundError struct {
	Resource string
	Scope    string
	Cause    error
}

func (e *ResourceNotFoundError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("resource %q was not found in %s", e.Resource, e.Scope)
	}
	return fmt.Sprintf("resource %q was not found", e.Resource)
}

func (e *ResourceNotFoundError) Unwrap() error { return e.Cause }

// ResourceCreationError reports a failure to create a resource, including
// name conflicts surfaced by the provider.
type ResourceCreationError struct {
	Resource string
	Cause    error
}

func (e *ResourceCreationError) Error() string {
	return fmt.Sprintf("could not create resource %q: %v", e.Resource, e.Cause)
}

func (e *ResourceCreationError) Unwrap() error { return e.Cause }

// ResourceDeletionError reports a failure to delete a resource. Deleting a
// resource that does not exist is a deletion error, not an idempotent
// success.
type ResourceDeletionError struct {
	Resource string
	Cause    error
}

func (e *ResourceDeletionError) Error() string {
	return fmt.Sprintf("could not delete resource %q: %v", e.Resource, e.Cause)
}

func (e *ResourceDeletionError) Unwrap() error { return e.Cause }

// CredentialsConfigurationError reports missing or malformed credential
// configuration (environment variables, profile files, ADC).
type CredentialsConfigurationError struct {
	Detail string
	Cause  error
}

func (e *CredentialsConfigurationError) Error() string {
	return fmt.Sprintf("credentials configuration: %s", e.Detail)
}

func (e *CredentialsConfigurationError) Unwrap() error { return e.Cause }

// OperationFailedError reports an asynchronous control-plane operation that
// reached a terminal state with an error payload.
type OperationFailedError struct {
	Operation string
	Cause     error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("operation %q failed: %v", e.Operation, e.Cause)
}

func (e *OperationFailedError) Unwrap() error { return e.Cause }

// TransferCreationError reports a failure to set up a staging transfer
// (storage account, container, or access URI).
type TransferCreationError struct {
	Subject string
	Cause   error
}

func (e *TransferCreationError) Error() string {
	return fmt.Sprintf("could not set up transfer for %q: %v", e.Subject, e.Cause)
}

func (e *TransferCreationError) Unwrap() error { return e.Cause }

// TransferExecutionError reports a server-side copy that terminated as
// aborted or failed.
type TransferExecutionError struct {
	Subject string
	Status  string
	Cause   error
}

func (e *TransferExecutionError) Error() string {
	return fmt.Sprintf("transfer for %q terminated with status %q", e.Subject, e.Status)
}

func (e *TransferExecutionError) Unwrap() error { return e.Cause }

// MachineTypeLookupError reports a machine-type catalogue lookup with no
// exact match for the requested sizing. Distinct from ResourceCreationError
// so callers can tell a bad sizing request from a failed create.
type MachineTypeLookupError struct {
	CPUCores int32
	MemoryMB int32
}

func (e *MachineTypeLookupError) Error() string {
	return fmt.Sprintf("no machine type with exactly %d cores and %d MB memory", e.CPUCores, e.MemoryMB)
}
