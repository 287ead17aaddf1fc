// Package domain models the eLicensing integration queue: the retry
// bookkeeping around asynchronous fee/invoice creation. Rows are drained by
// a periodic scheduler job, never by a long-lived worker.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/cleanbc/obps/internal/elicensing/invoice/domain"
	"gorm.io/datatypes"
)

type QueueStatus string

const (
	StatusPending            QueueStatus = "PENDING"
	StatusProcessing         QueueStatus = "PROCESSING"
	StatusCompleted          QueueStatus = "COMPLETED"
	StatusFailed             QueueStatus = "FAILED"
	StatusMaxRetriesExceeded QueueStatus = "MAX_RETRIES_EXCEEDED"
)

type IntegrationJob struct {
	ID snowflake.ID `gorm:"primaryKey"`
	// One queue row per (obligation, role): the obligation invoice and its
	// penalty invoice integrate independently.
	ComplianceObligationID snowflake.ID              `gorm:"not null;uniqueIndex:idx_integration_obligation_role"`
	InvoiceRole            invoicedomain.InvoiceRole `gorm:"type:text;not null;uniqueIndex:idx_integration_obligation_role"`

	Status      QueueStatus `gorm:"type:text;not null;default:'PENDING'"`
	RetryCount  int         `gorm:"not null;default:0"`
	LastError   string      `gorm:"type:text"`
	NextRetryAt time.Time   `gorm:"not null;index"`

	// ErrorHistory is an append-only JSON array of failed attempts, kept
	// for triage once a job exhausts its retry budget.
	ErrorHistory datatypes.JSON `gorm:"type:jsonb"`

	// Recovery markers persisted after each successful external call, so a
	// retry resumes instead of re-creating external resources.
	FeeObjectID   string `gorm:"type:text"`
	InvoiceNumber string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (IntegrationJob) TableName() string { return "elicensing_integration_queue" }

type AttemptError struct {
	Attempt int       `json:"attempt"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// RecordAttemptError appends one failed attempt to the history. A corrupt
// history is discarded rather than blocking the retry bookkeeping.
func (j *IntegrationJob) RecordAttemptError(at time.Time, message string) {
	var history []AttemptError
	if len(j.ErrorHistory) > 0 {
		_ = json.Unmarshal(j.ErrorHistory, &history)
	}
	history = append(history, AttemptError{Attempt: j.RetryCount, Error: message, At: at})
	encoded, err := json.Marshal(history)
	if err != nil {
		return
	}
	j.ErrorHistory = datatypes.JSON(encoded)
}
