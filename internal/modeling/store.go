package modeling

import (
	"sort"
	"sync"
	"time"
)

// JobStatus is a job's lifecycle state. Transitions are monotonic:
// queued -> running -> completed|error.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusError     JobStatus = "error"
)

// Job is the record of truth for one modeling job once it is no longer the
// current one in the live state.
type Job struct {
	ID        string    `json:"id"`
	Channels  []string  `json:"channels"`
	Algorithm string    `json:"algorithm"`
	Params    Params    `json:"params"`
	Status    JobStatus `json:"status"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the listing row for a job.
type Summary struct {
	ID        string    `json:"id"`
	Channels  []string  `json:"channels"`
	Algorithm string    `json:"algorithm"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the lock-protected job map queried by status and result
// endpoints. Snapshot copies go out; the internal records never escape.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Put inserts a queued job record.
func (s *Store) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get returns a snapshot copy of a job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// SetStatus transitions a job's status.
func (s *Store) SetStatus(id string, status JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = status
	}
}

// SetResult records the terminal status and result of a job. The result is
// immutable once set.
func (s *Store) SetResult(id string, status JobStatus, result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = status
		job.Result = result
	}
}

// Delete removes a job. Reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// ListFilter narrows and pages the job listing.
type ListFilter struct {
	Status    string
	Algorithm string
	Page      int
	Limit     int
}

// List returns job summaries newest first, filtered and paginated, plus the
// total match count before paging.
func (s *Store) List(f ListFilter) ([]Summary, int) {
	s.mu.RLock()
	summaries := make([]Summary, 0, len(s.jobs))
	for _, job := range s.jobs {
		if f.Status != "" && string(job.Status) != f.Status {
			continue
		}
		if f.Algorithm != "" && job.Algorithm != f.Algorithm {
			continue
		}
		summaries = append(summaries, Summary{
			ID:        job.ID,
			Channels:  append([]string(nil), job.Channels...),
			Algorithm: job.Algorithm,
			Status:    job.Status,
			CreatedAt: job.CreatedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	total := len(summaries)

	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.Limit
		if start >= total {
			return []Summary{}, total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		summaries = summaries[start:end]
	}
	return summaries, total
}
