package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/registry/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOperatorByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Operator, error) {
	var operator domain.Operator
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM operators WHERE id = ?`, id,
	).Scan(&operator).Error
	if err != nil {
		return nil, err
	}
	if operator.ID == 0 {
		return nil, domain.ErrOperatorNotFound
	}
	return &operator, nil
}

func (r *repo) FindOperationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Operation, error) {
	var operation domain.Operation
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM operations WHERE id = ?`, id,
	).Scan(&operation).Error
	if err != nil {
		return nil, err
	}
	if operation.ID == 0 {
		return nil, domain.ErrOperationNotFound
	}
	return &operation, nil
}
