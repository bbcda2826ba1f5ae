package refresh

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/almanac/internal/store"
)

// JobType enumerates the supported refresh job variants.
type JobType string

const (
	JobTypePeriod JobType = "period"
	JobTypeSeason JobType = "season"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job models the database representation of a refresh job.
type Job struct {
	JobID           string         `json:"job_id"`
	JobType         JobType        `json:"job_type"`
	SeasonYear      sql.NullInt32  `json:"season_year"`
	PeriodIDs       pq.StringArray `json:"period_ids"`
	Status          JobStatus      `json:"status"`
	StatusMessage   sql.NullString `json:"status_message"`
	ProgressCurrent int            `json:"progress_current"`
	ProgressTotal   int            `json:"progress_total"`
	LastError       sql.NullString `json:"last_error"`
	RetryCount      int            `json:"retry_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	StartedAt       sql.NullTime   `json:"started_at"`
	CompletedAt     sql.NullTime   `json:"completed_at"`
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	return &cpy
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	Type       JobType
	SeasonYear int
	PeriodIDs  []int
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnPeriodStart(period *store.Period, index int, total int)
	OnPeriodComplete(result *PeriodResult)
	OnProgress(message string, current int, total int)
	OnJobComplete()
	OnJobError(err error)
}

// PeriodResult summarizes one period refresh.
type PeriodResult struct {
	PeriodID   int `json:"period_id"`
	Rows       int `json:"rows"`
	Targets    int `json:"targets"`
	Refreshed  int `json:"refreshed"`
	Skipped    int `json:"skipped"`
	Unresolved int `json:"unresolved"`
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}

// Event is a job lifecycle notification for listeners outside the store.
type Event struct {
	JobID    string    `json:"job_id"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	PeriodID int       `json:"period_id,omitempty"`
	Current  int       `json:"current"`
	Total    int       `json:"total"`
	At       time.Time `json:"at"`
}

// Listener receives job events as they happen.
type Listener interface {
	OnRefreshEvent(ev Event)
}

func periodIDStrings(ids []int) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}

func periodIDInts(ids pq.StringArray) ([]int, error) {
	out := make([]int, 0, len(ids))
	for _, s := range ids {
		id, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
