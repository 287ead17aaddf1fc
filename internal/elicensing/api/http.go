package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cleanbc/obps/internal/config"
	"go.uber.org/zap"
)

type httpClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	log       *zap.Logger
}

// NewHTTPClient builds the production eLicensing client.
func NewHTTPClient(cfg config.Config, log *zap.Logger) Client {
	return &httpClient{
		baseURL:   strings.TrimRight(cfg.ElicensingBaseURL, "/"),
		authToken: cfg.ElicensingAuthToken,
		client:    &http.Client{Timeout: cfg.ElicensingRequestTimeout},
		log:       log.Named("elicensing.client"),
	}
}

func (c *httpClient) CreateClient(ctx context.Context, req CreateClientRequest) (CreateClientResponse, error) {
	var resp CreateClientResponse
	err := c.do(ctx, http.MethodPost, "/client", req, &resp)
	return resp, err
}

func (c *httpClient) CreateFees(ctx context.Context, clientObjectID string, req CreateFeesRequest) (CreateFeesResponse, error) {
	var resp CreateFeesResponse
	err := c.do(ctx, http.MethodPost, "/client/"+url.PathEscape(clientObjectID)+"/fees", req, &resp)
	return resp, err
}

func (c *httpClient) CreateInvoice(ctx context.Context, clientObjectID string, req CreateInvoiceRequest) (CreateInvoiceResponse, error) {
	var resp CreateInvoiceResponse
	err := c.do(ctx, http.MethodPost, "/client/"+url.PathEscape(clientObjectID)+"/invoice", req, &resp)
	return resp, err
}

func (c *httpClient) QueryInvoice(ctx context.Context, clientObjectID, invoiceNumber string) (InvoiceResponse, error) {
	var resp InvoiceResponse
	path := "/client/" + url.PathEscape(clientObjectID) + "/invoice/" + url.PathEscape(invoiceNumber)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *httpClient) AdjustFees(ctx context.Context, clientObjectID string, req AdjustFeesRequest) error {
	return c.do(ctx, http.MethodPut, "/client/"+url.PathEscape(clientObjectID)+"/fees/adjust", req, nil)
}

func (c *httpClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network failure or client-side timeout.
		return fmt.Errorf("%w: %s %s: %v", ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		c.log.Warn("elicensing server error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s %s: status %d", ErrTransient, method, path, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s %s: status %d", ErrRejected, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransient, path, err)
	}
	return nil
}
