package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// orphanQueries remove rows whose owning account no longer exists. Engines
// that enforce foreign keys never produce such rows; the sweep covers stores
// opened without enforcement.
var orphanQueries = []struct {
	table string
	query string
}{
	{"notes", `DELETE FROM notes WHERE "userId" NOT IN (SELECT "id" FROM users)`},
	{"tasks", `DELETE FROM tasks WHERE "userId" NOT IN (SELECT "id" FROM users)`},
}

// OrphanCleaner deletes notes and tasks left behind by removed accounts.
type OrphanCleaner struct {
	db  DBTX
	log *zap.Logger
}

// NewOrphanCleaner creates a cleaner bound to db.
func NewOrphanCleaner(db DBTX, log *zap.Logger) *OrphanCleaner {
	return &OrphanCleaner{db: db, log: log}
}

// Sweep runs one cleaning pass and returns the number of removed rows.
func (c *OrphanCleaner) Sweep(ctx context.Context) (int64, error) {
	var removed int64
	for _, q := range orphanQueries {
		res, err := c.db.ExecContext(ctx, q.query)
		if err != nil {
			return removed, fmt.Errorf("clean orphaned %s: %w", q.table, err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			removed += rows
		}
	}
	return removed, nil
}

func (c *OrphanCleaner) run(ctx context.Context) {
	removed, err := c.Sweep(ctx)
	if err != nil {
		c.log.Error("failed to clean orphaned records", zap.Error(err))
		return
	}
	if removed > 0 {
		c.log.Info("cleaned orphaned records", zap.Int64("removed", removed))
	}
}

// StartOrphanCleaner schedules a sweep every interval. The returned scheduler
// is already running; it shuts down when ctx is cancelled.
func StartOrphanCleaner(ctx context.Context, db DBTX, interval time.Duration, log *zap.Logger) (gocron.Scheduler, error) {
	cleaner := NewOrphanCleaner(db, log)

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { cleaner.run(ctx) }),
		gocron.WithName("orphan-cleaner"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule orphan cleaner: %w", err)
	}
	s.Start()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			log.Warn("orphan cleaner shutdown", zap.Error(err))
		}
	}()
	return s, nil
}
