// Package domain maps operators to eLicensing clients. At most one mapping
// row exists per operator; the unique constraint is the synchronization
// point for concurrent sync attempts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrClientMappingNotFound = errors.New("elicensing_client_mapping_not_found")

type ElicensingClientOperator struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OperatorID snowflake.ID `gorm:"not null;uniqueIndex"`
	// ClientObjectID is the external client id returned by eLicensing.
	ClientObjectID string `gorm:"type:text;not null"`
	// ClientGUID is the locally generated idempotency GUID sent with the
	// create-client call.
	ClientGUID string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ElicensingClientOperator) TableName() string { return "elicensing_client_operators" }

type Service interface {
	// SyncClientWithElicensing is an idempotent get-or-create. An existing
	// mapping short-circuits without a network call.
	SyncClientWithElicensing(ctx context.Context, operatorID snowflake.ID) (ElicensingClientOperator, error)
}
