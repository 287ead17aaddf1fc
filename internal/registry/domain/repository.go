package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is read-only: the registration subsystem owns these tables.
type Repository interface {
	FindOperatorByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Operator, error)
	FindOperationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Operation, error)
}

var (
	ErrOperatorNotFound  = errors.New("operator_not_found")
	ErrOperationNotFound = errors.New("operation_not_found")
)
