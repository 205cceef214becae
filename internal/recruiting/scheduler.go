package recruiting

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/conversation"
	"github.com/hrvibe/hrvibe-core/internal/utils"
)

const DefaultSchedulerInterval = 30 * time.Minute

// Scheduler runs the funnel for every manager in the sourcing state.
type Scheduler struct {
	Service  *Service
	Interval time.Duration
	Logger   *zap.Logger
}

// Run processes all sourcing managers, then waits for Interval, until ctx is
// done. An error of one manager does not stop the others.
func (sc *Scheduler) Run(ctx context.Context) error {
	interval := sc.Interval
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	log := sc.Logger
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("scheduler started", zap.Duration("interval", interval))

	for {
		sc.RunOnce(ctx, log)

		if err := utils.WaitFor(ctx, interval); err != nil {
			log.Info("scheduler stopped")
			return nil
		}
	}
}

// RunOnce processes every sourcing manager once.
func (sc *Scheduler) RunOnce(ctx context.Context, log *zap.Logger) {
	managers, err := sc.Service.store.ListManagers(ctx, string(conversation.StateSourcing))
	if err != nil {
		log.Error("listing sourcing managers", zap.Error(err))
		return
	}

	for _, m := range managers {
		if ctx.Err() != nil {
			return
		}
		if err := sc.Service.ProcessManager(ctx, m.ID); err != nil {
			sc.Service.managerLogger(m.ID).Error("processing manager", zap.Error(err))
		}
	}
}
