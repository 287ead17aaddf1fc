// Package bccr holds the BC Carbon Registry contract consumed by the
// earned-credit issuance flow. Only the account and issuance surface is
// modelled here; the registry owns everything else about credits.
package bccr

import (
	"context"
	"errors"
)

type Account struct {
	AccountID   string `json:"accountId"`
	TradingName string `json:"tradingName"`
}

type CreateIssuanceRequest struct {
	AccountID     string `json:"accountId"`
	Quantity      int64  `json:"quantity"`
	ReportingYear int    `json:"reportingYear"`
	ProjectID     string `json:"projectId"`
}

type IssuanceResponse struct {
	IssuanceID   string `json:"issuanceId"`
	SerialPrefix string `json:"serialPrefix"`
}

type Client interface {
	// LookupAccount resolves a trading name to a holding account.
	LookupAccount(ctx context.Context, tradingName string) (Account, error)
	// CreateSubAccount creates a compliance sub-account under a holding
	// account when one does not already exist.
	CreateSubAccount(ctx context.Context, accountID string) (Account, error)
	CreateIssuance(ctx context.Context, req CreateIssuanceRequest) (IssuanceResponse, error)
}

var ErrAccountNotFound = errors.New("bccr_account_not_found")
