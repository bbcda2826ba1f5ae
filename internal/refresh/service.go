package refresh

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/store"
)

// JobStore persists jobs. *Repository implements it.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error
	AppendEvent(ctx context.Context, jobID string, eventType, message string, current, total *int) error
	ResetStuckJobs(ctx context.Context) error
	MarkNextJobRunning(ctx context.Context) (*Job, error)
	GetActiveJob(ctx context.Context) (*Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*Job, error)
}

// JobRunner executes a job spec. *Runner implements it.
type JobRunner interface {
	Run(ctx context.Context, spec JobSpec, reporter Reporter) error
}

// Request represents a refresh invocation request.
type Request struct {
	SeasonYear int   `json:"season_year,omitempty"`
	PeriodIDs  []int `json:"period_ids,omitempty"`
}

// DeriveType infers the job type based on populated fields.
func (r Request) DeriveType() (JobType, error) {
	if len(r.PeriodIDs) > 0 {
		return JobTypePeriod, nil
	}
	if r.SeasonYear > 0 {
		return JobTypeSeason, nil
	}
	return "", fmt.Errorf("unable to determine job type from request")
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo   JobStore
	runner JobRunner

	historyLimit int
	pollInterval time.Duration

	mu        sync.RWMutex
	listeners []Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

// NewService constructs a Service. Call Start to launch the worker.
func NewService(repo JobStore, runner JobRunner) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:         repo,
		runner:       runner,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		log:          logrus.WithField("component", "refresh"),
	}
}

// Subscribe registers a listener for job events.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listeners {
		l.OnRefreshEvent(ev)
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.log.WithError(err).Warn("failed to reset jobs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for it to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job from the provided request.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	jobType, err := req.DeriveType()
	if err != nil {
		return nil, err
	}

	job := &Job{
		JobType:       jobType,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
	}
	if req.SeasonYear > 0 {
		job.SeasonYear = sql.NullInt32{Int32: int32(req.SeasonYear), Valid: true}
	}
	if jobType == JobTypePeriod {
		job.PeriodIDs = periodIDStrings(req.PeriodIDs)
		job.ProgressTotal = len(req.PeriodIDs)
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, stored.JobID, "queued", "Job queued", nil, nil)
	s.emit(Event{JobID: stored.JobID, Type: "queued", Message: "Job queued", Total: stored.ProgressTotal})

	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{ActiveJob: active, History: history}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil {
			s.log.WithError(err).Error("claim job error")
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		s.executeJob(job)
	}
}

func (s *Service) executeJob(job *Job) {
	entry := s.log.WithField("job", job.JobID)

	spec, err := buildSpec(job)
	if err != nil {
		entry.WithError(err).Error("invalid job spec")
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Invalid job specification", err)
		s.emit(Event{JobID: job.JobID, Type: "failed", Message: err.Error()})
		return
	}

	reporter := &jobReporter{ctx: s.ctx, svc: s, jobID: job.JobID, total: job.ProgressTotal}

	entry.Infof("Running %s refresh job", spec.Type)
	if err := s.runner.Run(s.ctx, spec, reporter); err != nil {
		status := JobStatusFailed
		if s.ctx.Err() != nil {
			status = JobStatusCancelled
		}
		// The run context may already be cancelled; record the outcome regardless.
		_ = s.repo.UpdateStatus(context.Background(), job.JobID, status, "Job "+string(status), err)
		s.emit(Event{JobID: job.JobID, Type: string(status), Message: err.Error()})
		return
	}

	msg := "Job completed"
	if reporter.errors > 0 {
		msg = fmt.Sprintf("Job completed with %d skipped periods", reporter.errors)
	}
	_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusCompleted, msg, nil)
	s.emit(Event{JobID: job.JobID, Type: "completed", Message: msg, Current: reporter.total, Total: reporter.total})
	entry.Info("✓ " + msg)
}

func buildSpec(job *Job) (JobSpec, error) {
	spec := JobSpec{Type: job.JobType}
	if job.SeasonYear.Valid {
		spec.SeasonYear = int(job.SeasonYear.Int32)
	}

	switch job.JobType {
	case JobTypePeriod:
		ids, err := periodIDInts(job.PeriodIDs)
		if err != nil {
			return spec, fmt.Errorf("bad period_ids: %w", err)
		}
		if len(ids) == 0 {
			return spec, fmt.Errorf("period job missing period_ids")
		}
		spec.PeriodIDs = ids
	case JobTypeSeason:
		if spec.SeasonYear == 0 {
			return spec, fmt.Errorf("season job missing season_year")
		}
	default:
		return spec, fmt.Errorf("unknown job type %s", job.JobType)
	}
	return spec, nil
}

type jobReporter struct {
	ctx    context.Context
	svc    *Service
	jobID  string
	total  int
	errors int
}

func (r *jobReporter) OnJobStart(spec JobSpec) {
	if r.total == 0 {
		r.total = len(spec.PeriodIDs)
	}
	_ = r.svc.repo.UpdateProgress(r.ctx, r.jobID, 0, r.total, "Job starting")
	r.svc.emit(Event{JobID: r.jobID, Type: "started", Message: "Job starting", Total: r.total})
}

func (r *jobReporter) OnPeriodStart(period *store.Period, index int, total int) {
	r.total = total
	msg := fmt.Sprintf("Refreshing %s (%d/%d)", period.Label, index+1, total)
	_ = r.svc.repo.UpdateProgress(r.ctx, r.jobID, index, total, msg)
	r.svc.emit(Event{JobID: r.jobID, Type: "period_start", Message: msg, PeriodID: period.PeriodID, Current: index, Total: total})
}

func (r *jobReporter) OnPeriodComplete(result *PeriodResult) {
	msg := fmt.Sprintf("Period %d: %d refreshed, %d skipped, %d unresolved",
		result.PeriodID, result.Refreshed, result.Skipped, result.Unresolved)
	_ = r.svc.repo.AppendEvent(r.ctx, r.jobID, "period", msg, nil, nil)
	r.svc.emit(Event{JobID: r.jobID, Type: "period_complete", Message: msg, PeriodID: result.PeriodID})
}

func (r *jobReporter) OnProgress(message string, current int, total int) {
	_ = r.svc.repo.UpdateProgress(r.ctx, r.jobID, current, valueOr(total, r.total), message)
	r.svc.emit(Event{JobID: r.jobID, Type: "progress", Message: message, Current: current, Total: valueOr(total, r.total)})
}

func (r *jobReporter) OnJobComplete() {
	_ = r.svc.repo.UpdateProgress(r.ctx, r.jobID, r.total, r.total, "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	r.errors++
	_ = r.svc.repo.AppendEvent(r.ctx, r.jobID, "error", err.Error(), nil, nil)
	r.svc.emit(Event{JobID: r.jobID, Type: "error", Message: err.Error()})
}

func valueOr(val, fallback int) int {
	if val > 0 {
		return val
	}
	return fallback
}
