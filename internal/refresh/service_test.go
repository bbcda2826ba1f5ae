package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memJobs struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	events   []string
	statuses map[string]JobStatus
	seq      int
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]*Job{}, statuses: map[string]JobStatus{}}
}

func (m *memJobs) CreateJob(_ context.Context, job *Job) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	stored := job.Copy()
	stored.JobID = string(rune('a' + m.seq))
	m.jobs[stored.JobID] = stored
	return stored.Copy(), nil
}

func (m *memJobs) UpdateStatus(_ context.Context, id string, status JobStatus, _ string, _ error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *memJobs) UpdateProgress(context.Context, string, int, int, string) error { return nil }

func (m *memJobs) AppendEvent(_ context.Context, _ string, eventType, _ string, _, _ *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return nil
}

func (m *memJobs) ResetStuckJobs(context.Context) error                { return nil }
func (m *memJobs) MarkNextJobRunning(context.Context) (*Job, error)    { return nil, nil }
func (m *memJobs) GetActiveJob(context.Context) (*Job, error)          { return nil, nil }
func (m *memJobs) ListRecentJobs(context.Context, int) ([]*Job, error) { return nil, nil }

type scriptedRunner struct {
	spec JobSpec
	err  error
}

func (s *scriptedRunner) Run(_ context.Context, spec JobSpec, rep Reporter) error {
	s.spec = spec
	rep.OnJobStart(spec)
	rep.OnPeriodComplete(&PeriodResult{PeriodID: 7, Refreshed: 3})
	if s.err != nil {
		return s.err
	}
	rep.OnJobComplete()
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnRefreshEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func TestRequestDeriveType(t *testing.T) {
	if typ, _ := (Request{PeriodIDs: []int{1}, SeasonYear: 2024}).DeriveType(); typ != JobTypePeriod {
		t.Fatalf("type = %s", typ)
	}
	if typ, _ := (Request{SeasonYear: 2024}).DeriveType(); typ != JobTypeSeason {
		t.Fatalf("type = %s", typ)
	}
	if _, err := (Request{}).DeriveType(); err == nil {
		t.Fatal("empty request must be rejected")
	}
}

func TestEnqueueAndExecute(t *testing.T) {
	jobs := newMemJobs()
	runner := &scriptedRunner{}
	svc := NewService(jobs, runner)
	listener := &eventLog{}
	svc.Subscribe(listener)

	job, err := svc.Enqueue(context.Background(), Request{PeriodIDs: []int{7, 8}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.JobType != JobTypePeriod || job.ProgressTotal != 2 || len(job.PeriodIDs) != 2 || job.PeriodIDs[1] != "8" {
		t.Fatalf("job = %+v", job)
	}

	svc.executeJob(job)

	if runner.spec.Type != JobTypePeriod || len(runner.spec.PeriodIDs) != 2 || runner.spec.PeriodIDs[0] != 7 {
		t.Fatalf("spec = %+v", runner.spec)
	}
	if jobs.statuses[job.JobID] != JobStatusCompleted {
		t.Fatalf("status = %s", jobs.statuses[job.JobID])
	}

	types := listener.types()
	want := []string{"queued", "started", "period_complete", "completed"}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}

func TestExecuteJobFailure(t *testing.T) {
	jobs := newMemJobs()
	svc := NewService(jobs, &scriptedRunner{err: errors.New("boom")})

	job, err := svc.Enqueue(context.Background(), Request{SeasonYear: 2023})
	if err != nil {
		t.Fatal(err)
	}
	svc.executeJob(job)

	if jobs.statuses[job.JobID] != JobStatusFailed {
		t.Fatalf("status = %s, want failed", jobs.statuses[job.JobID])
	}
}

func TestBuildSpecRejectsBadJobs(t *testing.T) {
	if _, err := buildSpec(&Job{JobType: JobTypePeriod}); err == nil {
		t.Fatal("period job without ids must fail")
	}
	if _, err := buildSpec(&Job{JobType: JobTypePeriod, PeriodIDs: []string{"x"}}); err == nil {
		t.Fatal("non-numeric period id must fail")
	}
	if _, err := buildSpec(&Job{JobType: JobTypeSeason}); err == nil {
		t.Fatal("season job without a year must fail")
	}
}
