// Package rls sets the per-request session variables that the database
// row-level-security policies read. Policy definitions themselves live in the
// migrations; services only declare who is acting.
package rls

import (
	"gorm.io/gorm"
)

// Role values mirror the database roles the RLS policies are written against.
const (
	RoleIndustryUser = "industry_user"
	RoleCASAnalyst   = "cas_analyst"
	RoleCASDirector  = "cas_director"
)

// WithOperator scopes the transaction to a single operator. Industry users
// only ever see their own operator's rows. Policies exist only on Postgres;
// other dialects have no session variables and the call is a no-op.
func WithOperator(tx *gorm.DB, operatorID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SET LOCAL obps.current_operator_id = ?", operatorID).Error
}

// WithRole records the acting role for the duration of the transaction.
func WithRole(tx *gorm.DB, role string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SET LOCAL obps.current_role = ?", role).Error
}
