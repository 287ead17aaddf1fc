package bccr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cleanbc/obps/internal/config"
	"go.uber.org/zap"
)

type httpClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	log       *zap.Logger
}

// NewClient builds the production registry client. When no base URL is
// configured a NoOp client is returned so local environments can exercise
// the issuance flow without the registry.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	if cfg.BCCRBaseURL == "" {
		return NoOpClient{}
	}
	return &httpClient{
		baseURL:   cfg.BCCRBaseURL,
		authToken: cfg.BCCRAuthToken,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.Named("bccr.client"),
	}
}

func (c *httpClient) LookupAccount(ctx context.Context, tradingName string) (Account, error) {
	var account Account
	err := c.do(ctx, http.MethodGet, "/accounts?tradingName="+url.QueryEscape(tradingName), nil, &account)
	if err != nil {
		return Account{}, err
	}
	if account.AccountID == "" {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (c *httpClient) CreateSubAccount(ctx context.Context, accountID string) (Account, error) {
	var account Account
	err := c.do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(accountID)+"/sub-accounts", nil, &account)
	return account, err
}

func (c *httpClient) CreateIssuance(ctx context.Context, req CreateIssuanceRequest) (IssuanceResponse, error) {
	var resp IssuanceResponse
	err := c.do(ctx, http.MethodPost, "/issuances", req, &resp)
	return resp, err
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
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn("bccr request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("bccr: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NoOpClient satisfies the contract without a registry. Issuances get a
// deterministic placeholder id.
type NoOpClient struct{}

func (NoOpClient) LookupAccount(ctx context.Context, tradingName string) (Account, error) {
	return Account{AccountID: "local-" + tradingName, TradingName: tradingName}, nil
}

func (NoOpClient) CreateSubAccount(ctx context.Context, accountID string) (Account, error) {
	return Account{AccountID: accountID}, nil
}

func (NoOpClient) CreateIssuance(ctx context.Context, req CreateIssuanceRequest) (IssuanceResponse, error) {
	return IssuanceResponse{IssuanceID: "local-issuance", SerialPrefix: "BC-OBPS"}, nil
}
