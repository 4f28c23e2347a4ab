package extraction

import "sync"

// EntryStatus is the lifecycle of a queue entry. Transitions are monotonic:
// queued -> running -> completed|error, never backward.
type EntryStatus string

const (
	StatusQueued    EntryStatus = "queued"
	StatusRunning   EntryStatus = "running"
	StatusCompleted EntryStatus = "completed"
	StatusError     EntryStatus = "error"
)

func (s EntryStatus) terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Entry is one job's visible row in the extraction queue listing.
type Entry struct {
	ID      string      `json:"id"`
	Channel string      `json:"channel"`
	Status  EntryStatus `json:"status"`
	Result  *Result     `json:"result"`
}

// Registry keeps queue entries in submission order for display, clearing
// and cross-cutting visibility, independent of the FIFO channel itself.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a queued entry.
func (r *Registry) Add(id, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{ID: id, Channel: channel, Status: StatusQueued})
}

// Remove drops an entry that never made it into the queue.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// MarkRunning moves a queued entry to running. Terminal entries are left
// untouched so status never regresses.
func (r *Registry) MarkRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id && r.entries[i].Status == StatusQueued {
			r.entries[i].Status = StatusRunning
			return
		}
	}
}

// Finish records the job outcome on its entry.
func (r *Registry) Finish(id string, result *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID != id || r.entries[i].Status.terminal() {
			continue
		}
		if result != nil && result.Success {
			r.entries[i].Status = StatusCompleted
		} else {
			r.entries[i].Status = StatusError
		}
		r.entries[i].Result = result
		return
	}
}

// Snapshot returns a copy of all entries in submission order.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ClearFinished drops completed and errored entries, keeping queued and
// running ones.
func (r *Registry) ClearFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if !e.Status.terminal() {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}
