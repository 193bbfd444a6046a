package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an in-memory indexing job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is the in-memory record of one indexing run. It is observational
// only: losing it on restart loses nothing but status visibility.
type Job struct {
	ID             string     `json:"id"`
	WalletAddress  string     `json:"wallet_address"`
	TokenAddress   string     `json:"token_address"`
	ContestID      int64      `json:"contest_id,omitempty"`
	RegistrationID int64      `json:"registration_id,omitempty"`
	Status         JobStatus  `json:"status"`
	Error          string     `json:"error,omitempty"`
	PagesFetched   int        `json:"pages_fetched"`
	SwapsSeen      int        `json:"swaps_seen"`
	TradesInserted int64      `json:"trades_inserted"`
	EnqueuedAt     time.Time  `json:"enqueued_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the job reached a terminal status
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// NewJob builds a queued job with a fresh id
func NewJob(walletAddress, tokenAddress string, contestID, registrationID int64) *Job {
	return &Job{
		ID:             uuid.NewString(),
		WalletAddress:  walletAddress,
		TokenAddress:   tokenAddress,
		ContestID:      contestID,
		RegistrationID: registrationID,
		Status:         JobStatusQueued,
		EnqueuedAt:     time.Now().UTC(),
	}
}

// TrackerStats summarizes the tracker for the registry endpoint
type TrackerStats struct {
	Tracked   int   `json:"tracked"`
	Queued    int   `json:"queued"`
	Running   int   `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Evicted   int64 `json:"evicted"`
}

// JobTracker keeps a bounded registry of jobs. Past capacity it evicts the
// oldest finished job, or the oldest job outright when nothing has finished.
type JobTracker struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	order    []string
	capacity int

	completed int64
	failed    int64
	evicted   int64
}

// NewJobTracker creates a tracker holding at most capacity jobs
func NewJobTracker(capacity int) *JobTracker {
	if capacity <= 0 {
		capacity = 256
	}
	return &JobTracker{
		jobs:     make(map[string]*Job),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Add registers a job, evicting if the tracker is at capacity
func (t *JobTracker) Add(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.jobs) >= t.capacity {
		t.evictLocked()
	}

	copied := *job
	t.jobs[job.ID] = &copied
	t.order = append(t.order, job.ID)
}

func (t *JobTracker) evictLocked() {
	for i, id := range t.order {
		if j, ok := t.jobs[id]; ok && j.Finished() {
			delete(t.jobs, id)
			t.order = append(t.order[:i], t.order[i+1:]...)
			t.evicted++
			return
		}
	}
	if len(t.order) > 0 {
		delete(t.jobs, t.order[0])
		t.order = t.order[1:]
		t.evicted++
	}
}

// Remove drops a job that never made it onto the queue
func (t *JobTracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.jobs[id]; !ok {
		return
	}
	delete(t.jobs, id)
	for i, ordered := range t.order {
		if ordered == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the job with the given id
func (t *JobTracker) Get(id string) (*Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	j, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *j
	return &copied, true
}

// MarkRunning records that a worker picked the job up
func (t *JobTracker) MarkRunning(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j, ok := t.jobs[id]; ok {
		now := time.Now().UTC()
		j.Status = JobStatusRunning
		j.StartedAt = &now
	}
}

// MarkCompleted records a successful run and its ingest counters
func (t *JobTracker) MarkCompleted(id string, pagesFetched, swapsSeen int, inserted int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j, ok := t.jobs[id]; ok {
		now := time.Now().UTC()
		j.Status = JobStatusCompleted
		j.PagesFetched = pagesFetched
		j.SwapsSeen = swapsSeen
		j.TradesInserted = inserted
		j.FinishedAt = &now
		t.completed++
	}
}

// MarkFailed records a failed run and its error
func (t *JobTracker) MarkFailed(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if j, ok := t.jobs[id]; ok {
		now := time.Now().UTC()
		j.Status = JobStatusFailed
		if err != nil {
			j.Error = err.Error()
		}
		j.FinishedAt = &now
		t.failed++
	}
}

// Snapshot returns copies of all tracked jobs, newest first
func (t *JobTracker) Snapshot() []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Job, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		if j, ok := t.jobs[t.order[i]]; ok {
			result = append(result, *j)
		}
	}
	return result
}

// Stats returns tracker counters for the registry endpoint
func (t *JobTracker) Stats() TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := TrackerStats{
		Tracked:   len(t.jobs),
		Completed: t.completed,
		Failed:    t.failed,
		Evicted:   t.evicted,
	}
	for _, j := range t.jobs {
		switch j.Status {
		case JobStatusQueued:
			stats.Queued++
		case JobStatusRunning:
			stats.Running++
		}
	}
	return stats
}
