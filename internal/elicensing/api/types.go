// Package api is the client for the eLicensing billing system of record.
// Every creatable resource carries a client-generated idempotency GUID and
// the OBPS business-area code.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// BusinessAreaCode tags every eLicensing request made by this system.
const BusinessAreaCode = "OBPS"

type CreateClientRequest struct {
	ClientGUID       string `json:"clientGuid"`
	BusinessAreaCode string `json:"businessAreaCode"`
	CompanyName      string `json:"companyName"`
	DoingBusinessAs  string `json:"doingBusinessAs,omitempty"`
	BCCompanyRegistrationNumber string `json:"bcCompanyRegistrationNumber,omitempty"`
	AddressLine     string `json:"addressLine"`
	City            string `json:"city"`
	Province        string `json:"stateProvince"`
	PostalCode      string `json:"postalCode"`
	Country         string `json:"country"`
}

type CreateClientResponse struct {
	ClientObjectID string `json:"clientObjectId"`
	ClientGUID     string `json:"clientGuid"`
}

type FeeRecord struct {
	FeeGUID          string          `json:"feeGuid"`
	BusinessAreaCode string          `json:"businessAreaCode"`
	FeeProfileGroup  string          `json:"feeProfileGroupName"`
	Description      string          `json:"feeDescription"`
	Amount           decimal.Decimal `json:"feeAmount"`
	FeeDate          time.Time       `json:"feeDate"`
}

type CreateFeesRequest struct {
	Fees []FeeRecord `json:"fees"`
}

type CreateFeesResponse struct {
	ClientObjectID string   `json:"clientObjectId"`
	FeeObjectIDs   []string `json:"feeObjectIds"`
}

type CreateInvoiceRequest struct {
	PaymentDueDate time.Time `json:"paymentDueDate"`
	FeeObjectIDs   []string  `json:"fees"`
}

type CreateInvoiceResponse struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

type PaymentResponse struct {
	PaymentObjectID string          `json:"paymentObjectId"`
	Amount          decimal.Decimal `json:"amount"`
	ReceivedDate    time.Time       `json:"receivedDate"`
	Method          string          `json:"method"`
	ReceiptNumber   string          `json:"receiptNumber"`
}

type AdjustmentResponse struct {
	AdjustmentObjectID string          `json:"adjustmentObjectId"`
	Amount             decimal.Decimal `json:"amount"`
	AdjustmentDate     time.Time       `json:"date"`
	Reason             string          `json:"reason"`
	Type               string          `json:"type"`
}

type FeeResponse struct {
	FeeObjectID string          `json:"feeObjectId"`
	FeeType     string          `json:"feeType"`
	FeeDate     time.Time       `json:"feeDate"`
	BaseAmount  decimal.Decimal `json:"baseAmount"`
	Description string          `json:"description"`

	Payments []PaymentResponse `json:"payments"`
	// PaymentAdjustments are corrections to recorded payments; the mirror
	// normalizes them into payment rows tagged by transaction type.
	PaymentAdjustments []PaymentResponse    `json:"paymentAdjustments"`
	Adjustments        []AdjustmentResponse `json:"adjustments"`
}

type InvoiceResponse struct {
	InvoiceNumber          string          `json:"invoiceNumber"`
	PaymentDueDate         time.Time       `json:"paymentDueDate"`
	InvoiceOutstandingBalance decimal.Decimal `json:"invoiceOutstandingBalance"`
	InvoiceFeeBalance      decimal.Decimal `json:"invoiceFeeBalance"`
	InvoiceInterestBalance decimal.Decimal `json:"invoiceInterestBalance"`
	Fees                   []FeeResponse   `json:"fees"`
}

type FeeAdjustment struct {
	FeeObjectID    string          `json:"feeObjectId"`
	AdjustmentGUID string          `json:"adjustmentGuid"`
	// Amount is signed; decreases are negative.
	Amount decimal.Decimal `json:"adjustmentTotal"`
	Reason string          `json:"reason"`
}

type AdjustFeesRequest struct {
	Adjustments []FeeAdjustment `json:"adjustments"`
}
