package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/ZielManager/internal/jobs"
	"github.com/Dias221467/ZielManager/pkg/logger"
	"github.com/Dias221467/ZielManager/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// slotLayout names a run by the UTC minute it was scheduled for, so
// replicas in different time zones agree on it.
const slotLayout = "2006-01-02T15:04"

// slotLookback bounds how late a run may start and still be attributed
// to the activation it belongs to.
const slotLookback = time.Hour

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
)

// Scheduler runs jobs on cron specs. Overlapping runs of the same job are
// skipped, and a job with a lock runs once per slot across replicas.
type Scheduler struct {
	cron    *cron.Cron
	metrics *metrics.JobMetrics
}

func New(m *metrics.JobMetrics) *Scheduler {
	cronLog := cron.PrintfLogger(logger.Log)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		metrics: m,
	}
}

// Add schedules job on spec. lock may be nil for single-replica setups.
func (s *Scheduler) Add(spec string, job jobs.Job, lock Lock) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("schedule %s on %q: %w", job.Name(), spec, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.run(context.Background(), job, lock, scheduledAt(schedule, time.Now()))
	}))
	logger.Log.WithFields(logrus.Fields{
		"job":  job.Name(),
		"spec": spec,
	}).Info("Cron job registered")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scheduledAt returns the latest activation of schedule at or before now.
// A run that starts late, even past a minute boundary, still maps to the
// activation that triggered it.
func scheduledAt(schedule cron.Schedule, now time.Time) time.Time {
	at := schedule.Next(now.Add(-slotLookback))
	if at.After(now) {
		return now
	}
	for next := schedule.Next(at); !next.After(now); next = schedule.Next(next) {
		at = next
	}
	return at
}

func (s *Scheduler) run(ctx context.Context, job jobs.Job, lock Lock, at time.Time) {
	slot := at.UTC().Truncate(time.Minute).Format(slotLayout)
	log := logger.Log.WithFields(logrus.Fields{"job": job.Name(), "slot": slot})
	start := time.Now()

	if lock != nil {
		ok, err := lock.Acquire(ctx, slot)
		if err != nil {
			log.WithError(err).Error("Failed to acquire job lock")
			s.metrics.Observe(job.Name(), outcomeFailure, time.Since(start))
			return
		}
		if !ok {
			log.Info("Slot already claimed by another instance, skipping")
			s.metrics.Observe(job.Name(), outcomeSkipped, 0)
			return
		}
	}

	if err := job.Run(ctx); err != nil {
		log.WithError(err).Error("Cron job failed")
		s.metrics.Observe(job.Name(), outcomeFailure, time.Since(start))
		return
	}
	log.WithField("took", time.Since(start).String()).Info("Cron job finished")
	s.metrics.Observe(job.Name(), outcomeSuccess, time.Since(start))
}
