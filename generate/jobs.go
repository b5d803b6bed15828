package generate

import (
	"sync"
	"time"

	"github.com/PaulFidika/demogate/progress"
	"github.com/google/uuid"
)

// JobStatus is the lifecycle of a generation job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one generation attempt.
type Job struct {
	ID         string
	Feature    string
	DeviceID   string
	CreatedAt  time.Time
	FinishedAt *time.Time

	tracker *progress.Tracker
	mu      sync.Mutex
	status  JobStatus
	result  *Result
	errMsg  string
}

// JobView is the externally visible state of a Job.
type JobView struct {
	ID         string            `json:"id"`
	Feature    string            `json:"feature"`
	Status     JobStatus         `json:"status"`
	Progress   progress.Snapshot `json:"progress"`
	Result     *Result           `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// View snapshots the job.
func (j *Job) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobView{
		ID:         j.ID,
		Feature:    j.Feature,
		Status:     j.status,
		Progress:   j.tracker.Snapshot(),
		Result:     j.result,
		Error:      j.errMsg,
		CreatedAt:  j.CreatedAt,
		FinishedAt: j.FinishedAt,
	}
}

func (j *Job) finish(status JobStatus, res *Result, errMsg string, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.result = res
	j.errMsg = errMsg
	j.FinishedAt = &at
}

func (j *Job) finishedBefore(t time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.FinishedAt != nil && j.FinishedAt.Before(t)
}

// Jobs keeps recent jobs in memory. Finished jobs are dropped by Sweep once
// they are older than the retention.
type Jobs struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	progress  progress.Options
	now       func() time.Time
}

// NewJobs creates a job table. retention <= 0 defaults to 15 minutes.
func NewJobs(retention time.Duration, opts progress.Options) *Jobs {
	if retention <= 0 {
		retention = 15 * time.Minute
	}
	return &Jobs{jobs: make(map[string]*Job), retention: retention, progress: opts, now: time.Now}
}

func (s *Jobs) create(feature, deviceID string) *Job {
	j := &Job{
		ID:        uuid.NewString(),
		Feature:   feature,
		DeviceID:  deviceID,
		CreatedAt: s.now().UTC(),
		tracker:   progress.New(s.progress),
		status:    JobRunning,
	}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return j
}

// Get returns a job by id.
func (s *Jobs) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Sweep drops finished jobs past retention and returns how many were removed.
func (s *Jobs) Sweep() int {
	cutoff := s.now().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.finishedBefore(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}
