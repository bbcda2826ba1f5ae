package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/refresh"
	"github.com/fortuna/almanac/internal/store"
)

// PeriodFinder finds periods due for a refresh. *repository.SeasonRepository
// implements it.
type PeriodFinder interface {
	ActivePeriods(ctx context.Context, asOf time.Time, grace time.Duration) ([]*store.Period, error)
}

// Enqueuer queues refresh jobs. *refresh.Service implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req refresh.Request) (*refresh.Job, error)
}

// Config holds scheduler configuration
type Config struct {
	Spec     string         // cron expression, default "0 7 * * *"
	Location *time.Location // default America/New_York
	Grace    time.Duration  // periods that ended this recently are still refreshed
	Timeout  time.Duration  // per run
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return Config{
		Spec:     "0 7 * * *",
		Location: loc,
		Grace:    3 * 24 * time.Hour,
		Timeout:  time.Minute,
	}
}

// Orchestrator queues the daily refresh of active periods
type Orchestrator struct {
	periods PeriodFinder
	queue   Enqueuer
	config  Config
	cron    *cron.Cron
	log     *logrus.Entry
	now     func() time.Time
}

// NewOrchestrator validates the cron spec and builds a scheduler
func NewOrchestrator(periods PeriodFinder, queue Enqueuer, config Config) (*Orchestrator, error) {
	def := DefaultConfig()
	if config.Spec == "" {
		config.Spec = def.Spec
	}
	if config.Location == nil {
		config.Location = def.Location
	}
	if config.Grace < 0 {
		config.Grace = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}

	o := &Orchestrator{
		periods: periods,
		queue:   queue,
		config:  config,
		cron:    cron.New(cron.WithLocation(config.Location)),
		log:     logrus.WithField("component", "scheduler"),
		now:     time.Now,
	}

	if _, err := o.cron.AddFunc(config.Spec, o.tick); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", config.Spec, err)
	}
	return o, nil
}

// Start runs the cron loop until ctx is cancelled
func (o *Orchestrator) Start(ctx context.Context) {
	o.log.WithFields(logrus.Fields{
		"spec":     o.config.Spec,
		"location": o.config.Location.String(),
		"grace":    o.config.Grace,
	}).Info("Scheduler started")

	o.cron.Start()
	<-ctx.Done()

	stopCtx := o.cron.Stop()
	<-stopCtx.Done()
	o.log.Info("Scheduler stopped")
}

func (o *Orchestrator) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.Timeout)
	defer cancel()

	if _, err := o.RunOnce(ctx); err != nil {
		o.log.WithError(err).Error("scheduled refresh failed")
	}
}

// RunOnce queues a refresh of every period active today. It returns nil
// when nothing is due.
func (o *Orchestrator) RunOnce(ctx context.Context) (*refresh.Job, error) {
	today := o.now().In(o.config.Location)

	periods, err := o.periods.ActivePeriods(ctx, today, o.config.Grace)
	if err != nil {
		return nil, fmt.Errorf("finding active periods: %w", err)
	}
	if len(periods) == 0 {
		o.log.Info("No active periods to refresh")
		return nil, nil
	}

	ids := make([]int, len(periods))
	for i, p := range periods {
		ids[i] = p.PeriodID
	}

	job, err := o.queue.Enqueue(ctx, refresh.Request{PeriodIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("enqueue refresh: %w", err)
	}
	o.log.WithFields(logrus.Fields{"job": job.JobID, "periods": ids}).Info("✓ Queued daily refresh")
	return job, nil
}
