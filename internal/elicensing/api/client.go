package api

import (
	"context"
	"errors"
)

// Client is the surface the compliance services consume. All operations
// block for at most the configured request timeout; timeouts and 5xx
// responses surface as ErrTransient and are retried by the integration
// queue, 4xx responses are permanent.
type Client interface {
	CreateClient(ctx context.Context, req CreateClientRequest) (CreateClientResponse, error)
	CreateFees(ctx context.Context, clientObjectID string, req CreateFeesRequest) (CreateFeesResponse, error)
	CreateInvoice(ctx context.Context, clientObjectID string, req CreateInvoiceRequest) (CreateInvoiceResponse, error)
	QueryInvoice(ctx context.Context, clientObjectID, invoiceNumber string) (InvoiceResponse, error)
	AdjustFees(ctx context.Context, clientObjectID string, req AdjustFeesRequest) error
}

var (
	// ErrTransient marks failures worth retrying: network errors, timeouts,
	// eLicensing 5xx.
	ErrTransient = errors.New("elicensing_transient_error")

	// ErrRejected marks permanent request rejections (4xx).
	ErrRejected = errors.New("elicensing_request_rejected")
)
