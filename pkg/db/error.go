package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique-constraint violation.
// The compliance get-or-create paths (operator->client mapping, obligation
// per report version, integration queue row) treat this as "another writer
// committed first": the loser discards its work and re-reads.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// PostgreSQL 23505
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}
	// SQLite 2067
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}
	return false
}
