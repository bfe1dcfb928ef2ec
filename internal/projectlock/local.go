package projectlock

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/progresspay/internal/observability/metrics"
	"gorm.io/gorm"
)

// localLocker serializes per project within a single process.
type localLocker struct {
	runner txRunner

	mu    sync.Mutex
	locks map[snowflake.ID]*projectMutex
}

type projectMutex struct {
	sync.Mutex
	refs int
}

func newLocalLocker(runner txRunner) *localLocker {
	return &localLocker{runner: runner, locks: make(map[snowflake.ID]*projectMutex)}
}

func (l *localLocker) Backend() string { return metrics.LockBackendLocal }

func (l *localLocker) RunLocked(ctx context.Context, projectID snowflake.ID, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	pm := l.acquire(projectID)
	defer l.release(projectID, pm)
	l.runner.metrics.ObserveLockWait(metrics.LockBackendLocal, time.Since(start))

	if err := ctx.Err(); err != nil {
		return err
	}
	return l.runner.run(ctx, nil, fn)
}

func (l *localLocker) acquire(projectID snowflake.ID) *projectMutex {
	l.mu.Lock()
	pm, ok := l.locks[projectID]
	if !ok {
		pm = &projectMutex{}
		l.locks[projectID] = pm
	}
	pm.refs++
	l.mu.Unlock()

	pm.Lock()
	return pm
}

func (l *localLocker) release(projectID snowflake.ID, pm *projectMutex) {
	pm.Unlock()

	l.mu.Lock()
	pm.refs--
	if pm.refs == 0 {
		delete(l.locks, projectID)
	}
	l.mu.Unlock()
}
