package store

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
)

// DefaultRetention is how long closed incidents are kept as evidence.
const DefaultRetention = 90 * 24 * time.Hour

// RetentionJob periodically purges incidents older than the retention window.
type RetentionJob struct {
	store     port.EvidenceStore
	retention time.Duration
	logger    *zap.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewRetentionJob creates a job; call Start to schedule it.
func NewRetentionJob(store port.EvidenceStore, retention time.Duration, logger *zap.Logger) *RetentionJob {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RetentionJob{
		store:     store,
		retention: retention,
		logger:    logger,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		now:       time.Now,
	}
}

// Start schedules the purge with a standard five-field cron spec
// (e.g. "15 3 * * *").
func (j *RetentionJob) Start(spec string) error {
	if _, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = j.RunOnce(ctx)
	}); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("evidence retention scheduled",
		zap.String("spec", spec),
		zap.Duration("retention", j.retention),
	)
	return nil
}

// Stop unschedules the job and waits for a running purge to finish.
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce purges expired incidents immediately.
func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	n, err := j.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("evidence purge failed", zap.Error(err))
		return 0, err
	}
	j.logger.Info("evidence purged",
		zap.Int64("deleted", n),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}
