package statestore

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"reelflow/internal/logging"
)

// Sweeper periodically removes expired entries from a SQLite store on a
// cron schedule. Lazy expiry on Get remains the correctness backstop;
// the sweep keeps the database from accumulating dead rows.
type Sweeper struct {
	store  *SQLiteStore
	cron   *cron.Cron
	logger *slog.Logger
}

// NewSweeper schedules SweepExpired per the cron expression.
func NewSweeper(store *SQLiteStore, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "statestore-sweeper")

	c := cron.New()
	s := &Sweeper{store: store, cron: c, logger: logger}
	if _, err := c.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight sweep.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	removed, err := s.store.SweepExpired(context.Background())
	if err != nil {
		s.logger.Warn("expired snapshot sweep failed", logging.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("swept expired snapshots", logging.Int64("removed", removed))
	}
}
