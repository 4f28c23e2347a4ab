package modeling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytcomments/internal/nlp"
	"ytcomments/internal/storage"
	"ytcomments/internal/topics"
)

var (
	// ErrJobNotFound is returned for status/result queries on unknown jobs.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotCompleted is returned when results are requested too early.
	ErrNotCompleted = errors.New("job not completed")
	// ErrQueueFull is returned by Submit when the queue cannot accept more.
	ErrQueueFull = errors.New("modeling queue is full")
)

// Params are the user-tunable knobs of a modeling job.
type Params struct {
	NumTopics int    `json:"num_topics"`
	MaxIter   int    `json:"max_iter"`
	Language  string `json:"language"`
	NGramMin  int    `json:"ngram_min"`
	NGramMax  int    `json:"ngram_max"`
}

func (p Params) withDefaults(algorithm string) Params {
	if p.NumTopics <= 0 {
		p.NumTopics = 5
	}
	if p.MaxIter <= 0 {
		if algorithm == topics.AlgorithmNMF {
			p.MaxIter = 200
		} else {
			p.MaxIter = 20
		}
	}
	if p.Language == "" {
		p.Language = "auto"
	}
	if p.NGramMin <= 0 {
		p.NGramMin = 1
	}
	if p.NGramMax < p.NGramMin {
		p.NGramMax = 2
	}
	return p
}

// Result is the immutable payload of a finished modeling job.
type Result struct {
	Success            bool                  `json:"success"`
	JobID              string                `json:"job_id"`
	Algorithm          string                `json:"algorithm"`
	NumTopics          int                   `json:"num_topics"`
	TotalComments      int                   `json:"total_comments"`
	ValidComments      int                   `json:"valid_comments"`
	Channels           []string              `json:"channels"`
	Topics             []topics.Topic        `json:"topics"`
	DocumentTopics     [][]float64           `json:"document_topics"`
	Metadata           []storage.CommentMeta `json:"metadata"`
	Diversity          float64               `json:"diversity"`
	ModelInfo          map[string]any        `json:"model_info"`
	PreprocessingStats nlp.Stats             `json:"preprocessing_stats"`
	Error              string                `json:"error,omitempty"`
}

// CorpusLoader loads stored comments plus index-aligned metadata.
type CorpusLoader interface {
	LoadComments(channels []string) ([]string, []storage.CommentMeta, error)
}

// Preprocessor cleans a corpus, reporting 0-100 progress.
type Preprocessor interface {
	ProcessBatch(docs []string, onProgress func(pct int, message string)) []string
	Statistics(original, processed []string) nlp.Stats
}

// PreprocessorFactory builds a preprocessor for a job's language setting.
type PreprocessorFactory func(language string) Preprocessor

// ModelFactory selects the topic model for an algorithm name.
type ModelFactory func(algorithm string, cfg topics.Config) (topics.Model, error)

// ResultPersister is the best-effort external store. Failures are logged
// and never change job status; the in-memory store stays authoritative.
type ResultPersister interface {
	CreateJob(ctx context.Context, jobID string, channels []string, algorithm string, numTopics int, createdAt time.Time) error
	UpdateStatus(ctx context.Context, jobID, status, errMsg string) error
	SaveResult(ctx context.Context, jobID string, result any) error
	DeleteJob(ctx context.Context, jobID string) (bool, error)
}

// SnapshotCache is the best-effort job snapshot cache.
type SnapshotCache interface {
	SaveJob(ctx context.Context, jobID string, snapshot any) error
	LoadJob(ctx context.Context, jobID string, dest any) (bool, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// Options configure the modeling service.
type Options struct {
	QueueCapacity int
}

// Service owns the modeling queue, its single pipeline worker, the state
// tracker and the job store.
type Service struct {
	log       *slog.Logger
	loader    CorpusLoader
	newPre    PreprocessorFactory
	newModel  ModelFactory
	persister ResultPersister
	cache     SnapshotCache
	tracker   *Tracker
	store     *Store

	queue     chan request
	done      chan struct{}
	closeOnce sync.Once
}

type request struct {
	jobID     string
	channels  []string
	algorithm string
	params    Params
}

func NewService(log *slog.Logger, loader CorpusLoader, persister ResultPersister, cache SnapshotCache, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = 100
	}
	if persister == nil {
		persister = noopPersister{}
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		log:    log,
		loader: loader,
		newPre: func(language string) Preprocessor {
			return nlp.NewPreprocessor(language)
		},
		newModel:  topics.New,
		persister: persister,
		cache:     cache,
		tracker:   NewTracker(),
		store:     NewStore(),
		queue:     make(chan request, opts.QueueCapacity),
		done:      make(chan struct{}),
	}
}

// SetPreprocessorFactory overrides the preprocessor construction (tests).
func (s *Service) SetPreprocessorFactory(f PreprocessorFactory) { s.newPre = f }

// SetModelFactory overrides the model selection (tests).
func (s *Service) SetModelFactory(f ModelFactory) { s.newModel = f }

// Start launches the pipeline worker.
func (s *Service) Start() {
	go s.run()
}

// Shutdown closes the queue and waits for the worker to drain.
func (s *Service) Shutdown() {
	s.closeOnce.Do(func() { close(s.queue) })
	<-s.done
}

// Submit enqueues a modeling job without blocking. The algorithm is not
// validated here; an unsupported value fails the job before any work starts
// so its error is visible through the normal status surface.
func (s *Service) Submit(channels []string, algorithm string, params Params) (string, error) {
	params = params.withDefaults(algorithm)
	job := &Job{
		ID:        uuid.New().String()[:8],
		Channels:  channels,
		Algorithm: algorithm,
		Params:    params,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	s.store.Put(job)

	ctx := context.Background()
	if err := s.persister.CreateJob(ctx, job.ID, channels, algorithm, params.NumTopics, job.CreatedAt); err != nil {
		s.log.Warn("persisting job row failed", "job_id", job.ID, "err", err)
	}
	s.saveSnapshot(job.ID)

	select {
	case s.queue <- request{jobID: job.ID, channels: channels, algorithm: algorithm, params: params}:
		s.log.Info("modeling queued", "job_id", job.ID, "algorithm", algorithm, "channels", channels)
		return job.ID, nil
	default:
		s.store.Delete(job.ID)
		return "", ErrQueueFull
	}
}

// run consumes jobs strictly in FIFO order, one at a time. Any fault inside
// a job becomes an error record; the loop never stalls.
func (s *Service) run() {
	defer close(s.done)
	for req := range s.queue {
		s.store.SetStatus(req.jobID, StatusRunning)
		if err := s.persister.UpdateStatus(context.Background(), req.jobID, string(StatusRunning), ""); err != nil {
			s.log.Warn("persisting status failed", "job_id", req.jobID, "err", err)
		}
		s.execute(req)
	}
}

// execute runs one pipeline, converting panics and errors into an error
// record at the worker-loop boundary and always resetting the live state.
func (s *Service) execute(req request) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("modeling panic", "job_id", req.jobID, "panic", r)
			s.fail(req.jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := s.runPipeline(req); err != nil {
		s.log.Error("modeling failed", "job_id", req.jobID, "err", err)
		s.fail(req.jobID, err.Error())
	}
}

func (s *Service) fail(jobID, message string) {
	s.store.SetResult(jobID, StatusError, &Result{Success: false, JobID: jobID, Error: message})
	if err := s.persister.UpdateStatus(context.Background(), jobID, string(StatusError), message); err != nil {
		s.log.Warn("persisting error status failed", "job_id", jobID, "err", err)
	}
	s.saveSnapshot(jobID)
	s.tracker.Fail("Error: " + message)
}

// runPipeline is the sequential stage machine:
// loading -> preprocessing -> training -> finalizing.
func (s *Service) runPipeline(req request) error {
	s.tracker.Begin(req.jobID, req.channels)

	// Unsupported algorithms fail before any work starts.
	model, err := s.newModel(req.algorithm, topics.Config{
		NumTopics: req.params.NumTopics,
		MaxIter:   req.params.MaxIter,
		NGramMin:  req.params.NGramMin,
		NGramMax:  req.params.NGramMax,
		Seed:      time.Now().UnixNano(),
	})
	if err != nil {
		return err
	}

	// loading
	comments, meta, err := s.loader.LoadComments(req.channels)
	if err != nil {
		return fmt.Errorf("loading comments: %w", err)
	}
	if len(comments) == 0 {
		return fmt.Errorf("no comments found in channels %s: extract them first", strings.Join(req.channels, ", "))
	}
	totalLoaded := len(comments)
	s.tracker.SetCounts(totalLoaded, 0)
	s.tracker.SetProgress(10, fmt.Sprintf("Loaded %d comments", totalLoaded))

	// preprocessing: collaborator progress is remapped into the 20-70 band.
	s.tracker.SetStage(StagePreprocessing, 20, "Preprocessing comments...")
	pre := s.newPre(req.params.Language)
	processed := pre.ProcessBatch(comments, func(pct int, message string) {
		s.tracker.SetProgress(20+pct/2, message)
	})

	// Drop documents that reduced to nothing, keeping comments, processed
	// documents and metadata index-aligned.
	kept := 0
	for i, doc := range processed {
		if strings.TrimSpace(doc) == "" {
			continue
		}
		processed[kept] = doc
		comments[kept] = comments[i]
		meta[kept] = meta[i]
		kept++
	}
	processed = processed[:kept]
	comments = comments[:kept]
	meta = meta[:kept]
	s.tracker.SetCounts(totalLoaded, kept)

	if kept < req.params.NumTopics {
		return fmt.Errorf("too few valid documents (%d) for %d topics", kept, req.params.NumTopics)
	}

	// training: model progress is remapped into the 70-90 band.
	s.tracker.SetStage(StageTraining, 70, fmt.Sprintf("Training %s model...", strings.ToUpper(req.algorithm)))
	if err := model.Fit(processed, func(pct int, message string) {
		s.tracker.SetProgress(70+pct/5, message)
	}); err != nil {
		return fmt.Errorf("training %s model: %w", req.algorithm, err)
	}

	// finalizing
	s.tracker.SetStage(StageFinalizing, 90, "Finalizing results...")
	topicList := model.Topics(10)
	for i := range topicList {
		topicList[i].RepresentativeComments = model.RepresentativeDocuments(comments, topicList[i].ID, 5)
	}

	result := &Result{
		Success:            true,
		JobID:              req.jobID,
		Algorithm:          req.algorithm,
		NumTopics:          req.params.NumTopics,
		TotalComments:      totalLoaded,
		ValidComments:      kept,
		Channels:           req.channels,
		Topics:             topicList,
		DocumentTopics:     model.DocumentTopics(),
		Metadata:           meta,
		Diversity:          model.Diversity(),
		ModelInfo:          model.Info(),
		PreprocessingStats: pre.Statistics(comments, processed),
	}

	// The in-memory record is authoritative; external persistence after a
	// successful job is best-effort and never flips the status.
	s.store.SetResult(req.jobID, StatusCompleted, result)
	if err := s.persister.SaveResult(context.Background(), req.jobID, result); err != nil {
		s.log.Warn("persisting result failed", "job_id", req.jobID, "err", err)
	}
	s.saveSnapshot(req.jobID)

	s.tracker.Finish()
	s.log.Info("modeling completed", "job_id", req.jobID, "algorithm", req.algorithm,
		"topics", req.params.NumTopics, "documents", kept)
	return nil
}

func (s *Service) saveSnapshot(jobID string) {
	job, ok := s.store.Get(jobID)
	if !ok {
		return
	}
	if err := s.cache.SaveJob(context.Background(), jobID, job); err != nil {
		s.log.Warn("caching job snapshot failed", "job_id", jobID, "err", err)
	}
}

// StatusResponse is what the status endpoint answers.
type StatusResponse struct {
	JobID    string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Stage    Stage     `json:"stage,omitempty"`
	Message  string    `json:"message,omitempty"`
	Channels []string  `json:"channels"`
	Result   *Result   `json:"result,omitempty"`
}

// Status answers with live progress for the current job, or the stored
// record snapshot for any other job.
func (s *Service) Status(jobID string) (StatusResponse, error) {
	job, ok := s.lookup(jobID)
	if !ok {
		return StatusResponse{}, ErrJobNotFound
	}

	state := s.tracker.Snapshot()
	if state.Active && state.CurrentJobID == jobID {
		return StatusResponse{
			JobID:    jobID,
			Status:   StatusRunning,
			Progress: state.Progress,
			Stage:    state.Stage,
			Message:  state.Message,
			Channels: state.Channels,
		}, nil
	}

	resp := StatusResponse{
		JobID:    jobID,
		Status:   job.Status,
		Channels: job.Channels,
	}
	if job.Status == StatusCompleted {
		resp.Progress = 100
		resp.Result = job.Result
	}
	if job.Status == StatusError && job.Result != nil {
		resp.Message = job.Result.Error
	}
	return resp, nil
}

// ResultFor returns the result of a completed job.
func (s *Service) ResultFor(jobID string) (*Result, error) {
	job, ok := s.lookup(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != StatusCompleted {
		return nil, ErrNotCompleted
	}
	return job.Result, nil
}

// lookup reads the in-memory store first, then the snapshot cache.
func (s *Service) lookup(jobID string) (Job, bool) {
	if job, ok := s.store.Get(jobID); ok {
		return job, true
	}
	var cached Job
	found, err := s.cache.LoadJob(context.Background(), jobID, &cached)
	if err != nil {
		s.log.Warn("reading job snapshot failed", "job_id", jobID, "err", err)
		return Job{}, false
	}
	return cached, found
}

// List returns filtered, paginated job summaries plus the total count.
func (s *Service) List(f ListFilter) ([]Summary, int) {
	return s.store.List(f)
}

// Delete removes a job, cascading to the external store and cache.
func (s *Service) Delete(jobID string) bool {
	ok := s.store.Delete(jobID)

	ctx := context.Background()
	if _, err := s.persister.DeleteJob(ctx, jobID); err != nil {
		s.log.Warn("deleting persisted job failed", "job_id", jobID, "err", err)
	}
	if err := s.cache.DeleteJob(ctx, jobID); err != nil {
		s.log.Warn("deleting job snapshot failed", "job_id", jobID, "err", err)
	}
	return ok
}
