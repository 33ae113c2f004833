package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// holdSweepTimeout bounds one scheduled sweep
const holdSweepTimeout = 30 * time.Second

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	sweeper  *HoldExpiryService
	schedule string
	logger   *logrus.Logger
}

// NewCronService creates a new CronService.
// schedule accepts standard five-field specs and descriptors such as "@every 30s".
func NewCronService(sweeper *HoldExpiryService, schedule string, logger *logrus.Logger) *CronService {
	// A sweep never overlaps the previous one
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &CronService{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepExpiredHoldsJob); err != nil {
		return fmt.Errorf("failed to schedule hold sweep job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: release expired seat holds")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for a running job to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// RunHoldSweepNow runs the hold sweep immediately
func (s *CronService) RunHoldSweepNow(ctx context.Context) (SweepResult, error) {
	result, err := s.sweeper.RunOnce(ctx)
	s.logSweep("manual", result, err)
	return result, err
}

// sweepExpiredHoldsJob releases lapsed holds
func (s *CronService) sweepExpiredHoldsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), holdSweepTimeout)
	defer cancel()

	result, err := s.sweeper.RunOnce(ctx)
	s.logSweep("cron", result, err)
}

func (s *CronService) logSweep(trigger string, result SweepResult, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"trigger":     trigger,
		"released":    result.Released,
		"batches":     result.Batches,
		"duration_ms": result.Duration.Milliseconds(),
	})
	switch {
	case err != nil:
		entry.WithError(err).Error("Hold sweep failed")
	case result.Released > 0:
		entry.Info("Released expired seat holds")
	default:
		entry.Debug("No expired seat holds")
	}
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
