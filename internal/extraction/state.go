package extraction

import "sync"

// State is the live extraction status exposed to pollers. All fields reset
// to their zero values at process start and at every job boundary.
type State struct {
	Active            bool   `json:"active"`
	StopRequested     bool   `json:"stop_requested"`
	CurrentChannel    string `json:"current_channel"`
	CurrentVideo      string `json:"current_video"`
	VideosTotal       int    `json:"videos_total"`
	VideosCompleted   int    `json:"videos_completed"`
	CommentsExtracted int    `json:"comments_extracted"`
	Folder            string `json:"folder"`
}

// Tracker guards the extraction state singleton. The running worker is the
// only writer; pollers get value copies and never block the worker beyond
// the in-memory critical section.
type Tracker struct {
	mu    sync.Mutex
	state State
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Update applies a merge-update atomically. The callback must not block.
func (t *Tracker) Update(fn func(*State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.state)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset returns the state to its idle baseline.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{}
}

// RequestStop flags the running extraction to stop at the next unit
// boundary. Reports false when no extraction is active.
func (t *Tracker) RequestStop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Active {
		return false
	}
	t.state.StopRequested = true
	return true
}

// StopRequested reports whether a cooperative stop has been flagged.
func (t *Tracker) StopRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.StopRequested
}
