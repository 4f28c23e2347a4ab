package modeling

import "sync"

// Stage is a modeling pipeline phase. Stages advance strictly forward
// within one job and never skip backward.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageLoading       Stage = "loading"
	StagePreprocessing Stage = "preprocessing"
	StageTraining      Stage = "training"
	StageFinalizing    Stage = "finalizing"
)

var stageOrder = map[Stage]int{
	StageIdle:          0,
	StageLoading:       1,
	StagePreprocessing: 2,
	StageTraining:      3,
	StageFinalizing:    4,
}

// State is the live status of the one modeling job currently running.
type State struct {
	Active            bool     `json:"active"`
	CurrentJobID      string   `json:"current_job_id"`
	Stage             Stage    `json:"stage"`
	Progress          int      `json:"progress"`
	TotalComments     int      `json:"total_comments"`
	ProcessedComments int      `json:"processed_comments"`
	Message           string   `json:"message"`
	Channels          []string `json:"channels"`
}

// Tracker guards the modeling state singleton. Within a job, progress is
// monotonically non-decreasing and the stage only moves forward; writes
// that would regress either are dropped.
type Tracker struct {
	mu    sync.Mutex
	state State
}

func NewTracker() *Tracker {
	return &Tracker{state: State{Stage: StageIdle}}
}

// Begin marks a new job as current and starts it in the loading stage.
func (t *Tracker) Begin(jobID string, channels []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{
		Active:       true,
		CurrentJobID: jobID,
		Stage:        StageLoading,
		Progress:     0,
		Message:      "Loading comments...",
		Channels:     channels,
	}
}

// SetStage advances to a later stage with its checkpoint progress.
func (t *Tracker) SetStage(stage Stage, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stageOrder[stage] < stageOrder[t.state.Stage] {
		return
	}
	t.state.Stage = stage
	t.setProgressLocked(progress)
	t.state.Message = message
}

// SetProgress raises progress within the current stage.
func (t *Tracker) SetProgress(progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setProgressLocked(progress)
	if message != "" {
		t.state.Message = message
	}
}

func (t *Tracker) setProgressLocked(progress int) {
	if progress > 100 {
		progress = 100
	}
	if progress > t.state.Progress {
		t.state.Progress = progress
	}
}

// SetCounts records corpus sizes.
func (t *Tracker) SetCounts(total, processed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.TotalComments = total
	t.state.ProcessedComments = processed
}

// Finish resets to idle after a successful job.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Stage: StageIdle, Progress: 100, Message: "Modeling completed"}
}

// Fail resets to idle with the failure message.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Stage: StageIdle, Message: message}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state
	st.Channels = append([]string(nil), t.state.Channels...)
	return st
}
