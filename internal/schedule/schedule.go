// Package schedule runs a stored batch file on a cron expression.
package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"promptscan-backend/internal/jobs"
	"promptscan-backend/internal/shared/telemetry"
)

const runTimeout = 30 * time.Minute

// Runner executes a batch file that already lives in the object store.
type Runner interface {
	RunStored(ctx context.Context, storageKey string) (jobs.Job, error)
}

// Scheduler triggers Runner for one storage key on a cron schedule.
// Overlapping ticks are skipped while a run is still in flight.
type Scheduler struct {
	runner     Runner
	storageKey string
	cron       *cron.Cron
}

// New returns a scheduler for storageKey.
func New(runner Runner, storageKey string) *Scheduler {
	return &Scheduler{
		runner:     runner,
		storageKey: strings.TrimSpace(storageKey),
		cron:       cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers spec and starts the cron loop. Standard five-field
// expressions and descriptors such as "@every 1h" are accepted.
func (s *Scheduler) Start(spec string) error {
	if s.runner == nil {
		return errors.New("schedule runner is required")
	}
	if s.storageKey == "" {
		return errors.New("schedule storage key is required")
	}
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return err
	}
	s.cron.Start()
	telemetry.Info("schedule.started", map[string]any{
		"spec":        spec,
		"storage_key": s.storageKey,
	})
	return nil
}

// Stop halts the loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	telemetry.Info("schedule.stopped", nil)
}

// RunNow executes one run in the calling goroutine.
func (s *Scheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()
	job, err := s.runner.RunStored(ctx, s.storageKey)
	if err != nil {
		telemetry.Error("schedule.run_failed", map[string]any{
			"storage_key": s.storageKey,
			"job_id":      job.ID,
			"error":       err.Error(),
		})
		return
	}
	telemetry.Info("schedule.run_completed", map[string]any{
		"storage_key": s.storageKey,
		"job_id":      job.ID,
		"session_id":  job.SessionID,
		"export_id":   job.ExportID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
