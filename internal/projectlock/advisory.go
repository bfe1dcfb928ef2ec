package projectlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/progresspay/internal/observability/metrics"
	"gorm.io/gorm"
)

// advisoryLocker takes a PostgreSQL transaction-scoped advisory lock, so the
// lock spans every replica of the service. The transaction runs at READ
// COMMITTED: each statement after the lock sees rows committed by the
// previous holder, which a snapshot taken at the first statement would not.
type advisoryLocker struct {
	runner txRunner
}

func newAdvisoryLocker(runner txRunner) *advisoryLocker {
	runner.opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return &advisoryLocker{runner: runner}
}

func (l *advisoryLocker) Backend() string { return metrics.LockBackendAdvisory }

func (l *advisoryLocker) RunLocked(ctx context.Context, projectID snowflake.ID, fn func(tx *gorm.DB) error) error {
	key := advisoryKey(projectID)
	return l.runner.run(ctx, func(tx *gorm.DB) error {
		start := time.Now()
		err := tx.Exec("SELECT pg_advisory_xact_lock(?)", key).Error
		l.runner.metrics.ObserveLockWait(metrics.LockBackendAdvisory, time.Since(start))
		return err
	}, fn)
}

// advisoryKey namespaces the project id so it cannot collide with other
// advisory lock users on the same database.
func advisoryKey(projectID snowflake.ID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("progresspay:project:"))
	_, _ = h.Write([]byte(projectID.String()))
	return int64(h.Sum64())
}
