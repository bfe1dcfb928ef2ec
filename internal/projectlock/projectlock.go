// Package projectlock serializes writes that must not interleave within one
// project, such as pay application creation and numbering.
package projectlock

import (
	"context"
	"database/sql"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/progresspay/internal/observability/metrics"
	"github.com/smallbiznis/progresspay/internal/orgcontext"
	"github.com/smallbiznis/progresspay/pkg/db"
	"github.com/smallbiznis/progresspay/pkg/rls"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxAttempts bounds retries of a transaction aborted by a serialization failure.
const maxAttempts = 3

// Locker runs fn inside a transaction while holding the lock for projectID.
// The lock is held until the transaction commits or rolls back.
type Locker interface {
	RunLocked(ctx context.Context, projectID snowflake.ID, fn func(tx *gorm.DB) error) error
	Backend() string
}

type txRunner struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.BillingMetrics
	opts    *sql.TxOptions
}

// run executes fn in a transaction, retrying serialization failures. before
// runs first inside every attempt.
func (r txRunner) run(ctx context.Context, before func(tx *gorm.DB) error, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if before != nil {
				if err := before(tx); err != nil {
					return err
				}
			}
			if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok && db.IsPostgres(tx) {
				if err := rls.WithTenant(tx, orgID); err != nil {
					return err
				}
			}
			return fn(tx)
		}, r.opts)
		if err == nil || !db.IsSerializationFailure(err) {
			return err
		}
		r.metrics.IncSerializationRetry()
		r.log.Warn("retrying serialization failure", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}
