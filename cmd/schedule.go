package main

import (
	"context"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/notify"
)

// errRunInProgress is returned when another scheduled run holds the lock.
var errRunInProgress = eris.New("scheduled run already in progress")

// runner executes one prospection run.
type runner interface {
	Run(ctx context.Context, cfg model.RunConfig) (*model.Run, error)
}

// runScheduled executes the scheduled configuration under an exclusive file
// lock and notifies the sales team when the run found HOT leads. An empty
// lockFile skips locking.
func runScheduled(ctx context.Context, r runner, n notify.Notifier, runCfg model.RunConfig, lockFile string) (*model.Run, error) {
	if lockFile != "" {
		fl := flock.New(lockFile)
		locked, err := fl.TryLock()
		if err != nil {
			return nil, eris.Wrap(err, "acquire schedule lock")
		}
		if !locked {
			return nil, errRunInProgress
		}
		defer fl.Unlock() //nolint:errcheck
	}

	run, err := r.Run(ctx, runCfg)
	if run != nil {
		notifyHot(ctx, n, run)
	}
	return run, err
}

// notifyHot sends the run summary when it has at least one HOT lead.
// Delivery failures are logged only.
func notifyHot(ctx context.Context, n notify.Notifier, run *model.Run) {
	hot := run.Results.LeadsByCategory[model.CategoryHot]
	if n == nil || hot == 0 {
		return
	}
	if err := n.NotifyRun(context.WithoutCancel(ctx), run); err != nil {
		zap.L().Warn("notify: run summary failed",
			zap.String("run_id", run.ID),
			zap.Int("hot", hot),
			zap.Error(err),
		)
	}
}
