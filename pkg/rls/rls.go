package rls

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// WithTenant scopes the Postgres row-level-security setting to the current transaction.
func WithTenant(tx *gorm.DB, orgID snowflake.ID) error {
	return tx.Exec("SELECT set_config('app.current_org_id', ?, true)", orgID.String()).Error
}
