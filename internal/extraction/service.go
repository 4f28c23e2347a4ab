package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ytcomments/internal/storage"
	"ytcomments/internal/youtube"
)

// ErrQueueFull is returned by Submit when the job queue cannot accept more
// work without blocking.
var ErrQueueFull = errors.New("extraction queue is full")

// ChannelResolver lists a channel's videos and metadata.
type ChannelResolver interface {
	ListVideos(ctx context.Context, channel string) ([]youtube.Video, youtube.ChannelInfo, error)
}

// CommentFetcher pulls one video's comments.
type CommentFetcher interface {
	FetchComments(ctx context.Context, video youtube.Video) (youtube.VideoComments, error)
}

// ArtifactStore persists per-video artifacts and channel stats. Calls are
// issued from the single job loop, one at a time.
type ArtifactStore interface {
	DownloadedIDs(folder string) (map[string]struct{}, error)
	ExistingComments(folder string) (int, error)
	SaveVideo(folder string, vc youtube.VideoComments) error
	SaveChannelInfo(folder string, info youtube.ChannelInfo, stats storage.ChannelStats) error
}

// Job is one queued channel extraction.
type Job struct {
	ID           string
	Channel      string
	Limit        int
	SkipExisting bool
	Workers      int
}

// Outcome distinguishes how an extraction ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeStopped     Outcome = "stopped"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

// Result is the structured outcome of one extraction job.
type Result struct {
	Success       bool    `json:"success"`
	Outcome       Outcome `json:"outcome"`
	ChannelName   string  `json:"channel_name,omitempty"`
	Folder        string  `json:"folder,omitempty"`
	TotalVideos   int     `json:"total_videos"`
	TotalComments int     `json:"total_comments"`
	Stopped       bool    `json:"stopped"`
	RateLimited   bool    `json:"rate_limited"`
	Message       string  `json:"message,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Options bound the per-job fan-out and the queue size.
type Options struct {
	DefaultWorkers int
	MaxWorkers     int
	QueueCapacity  int
}

// Service owns the extraction queue, its single consumer goroutine, the
// state tracker and the queue registry.
type Service struct {
	log      *slog.Logger
	resolver ChannelResolver
	fetcher  CommentFetcher
	store    ArtifactStore
	tracker  *Tracker
	registry *Registry
	opts     Options

	queue     chan Job
	done      chan struct{}
	closeOnce sync.Once
}

func NewService(log *slog.Logger, resolver ChannelResolver, fetcher CommentFetcher, store ArtifactStore, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.DefaultWorkers < 1 {
		opts.DefaultWorkers = 2
	}
	if opts.MaxWorkers < opts.DefaultWorkers {
		opts.MaxWorkers = opts.DefaultWorkers
	}
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = 100
	}
	return &Service{
		log:      log,
		resolver: resolver,
		fetcher:  fetcher,
		store:    store,
		tracker:  NewTracker(),
		registry: NewRegistry(),
		opts:     opts,
		queue:    make(chan Job, opts.QueueCapacity),
		done:     make(chan struct{}),
	}
}

// Start launches the queue consumer.
func (s *Service) Start() {
	go s.run()
}

// Shutdown closes the queue and waits for the consumer to drain. The job in
// flight finishes unless a stop was requested.
func (s *Service) Shutdown() {
	s.closeOnce.Do(func() { close(s.queue) })
	<-s.done
}

// Submit enqueues one channel extraction without blocking. Returns the job
// id, or ErrQueueFull when the queue cannot take it.
func (s *Service) Submit(channel string, limit int, skipExisting bool, workers int) (string, error) {
	jobID := uuid.New().String()[:8]
	job := Job{
		ID:           jobID,
		Channel:      channel,
		Limit:        limit,
		SkipExisting: skipExisting,
		Workers:      workers,
	}

	s.registry.Add(jobID, channel)
	select {
	case s.queue <- job:
		s.log.Info("extraction queued", "job_id", jobID, "channel", channel)
		return jobID, nil
	default:
		s.registry.Remove(jobID)
		return "", ErrQueueFull
	}
}

// QueueSize reports how many jobs are waiting.
func (s *Service) QueueSize() int {
	return len(s.queue)
}

// Status returns a state snapshot plus the registry listing.
func (s *Service) Status() (State, []Entry) {
	return s.tracker.Snapshot(), s.registry.Snapshot()
}

// RequestStop flags the active extraction to stop. Reports false when
// nothing is running.
func (s *Service) RequestStop() bool {
	return s.tracker.RequestStop()
}

// ClearQueue drops completed/errored registry entries.
func (s *Service) ClearQueue() {
	s.registry.ClearFinished()
}

// run consumes jobs strictly in FIFO order, one at a time. The loop itself
// never fails: any fault inside a job becomes an error entry.
func (s *Service) run() {
	defer close(s.done)
	for job := range s.queue {
		s.registry.MarkRunning(job.ID)
		result := s.execute(job)
		s.registry.Finish(job.ID, result)
	}
}

// execute runs one job, converting panics and errors into a Result at the
// worker-loop boundary and always resetting the shared state.
func (s *Service) execute(job Job) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("extraction panic", "job_id", job.ID, "panic", r)
			result = &Result{Outcome: OutcomeError, Error: fmt.Sprintf("internal error: %v", r)}
		}
		s.tracker.Reset()
	}()

	res, err := s.extract(job)
	if err != nil {
		s.log.Error("extraction failed", "job_id", job.ID, "channel", job.Channel, "err", err)
		return &Result{Outcome: OutcomeError, Error: err.Error()}
	}
	return res
}

// unitResult pairs one fetched video with its error, delivered in
// completion order.
type unitResult struct {
	video youtube.Video
	data  youtube.VideoComments
	err   error
}

// extract performs one channel extraction with a bounded fan-out.
func (s *Service) extract(job Job) (*Result, error) {
	s.tracker.Update(func(st *State) {
		st.Active = true
		st.StopRequested = false
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	videos, info, err := s.resolver.ListVideos(ctx, job.Channel)
	if err != nil {
		return nil, fmt.Errorf("resolving channel: %w", err)
	}
	totalAvailable := len(videos)
	folder := storage.SafeFolderName(job.Channel, info.Name)

	s.tracker.Update(func(st *State) {
		st.CurrentChannel = info.Name
		st.Folder = folder
	})

	downloaded, err := s.store.DownloadedIDs(folder)
	if err != nil {
		return nil, fmt.Errorf("listing existing artifacts: %w", err)
	}
	existingCount := len(downloaded)

	if job.SkipExisting {
		kept := videos[:0]
		for _, v := range videos {
			if _, ok := downloaded[v.ID]; !ok {
				kept = append(kept, v)
			}
		}
		if skipped := len(videos) - len(kept); skipped > 0 {
			s.log.Info("skipping already downloaded videos", "job_id", job.ID, "skipped", skipped)
		}
		videos = kept
	}
	if job.Limit > 0 && len(videos) > job.Limit {
		videos = videos[:job.Limit]
	}

	if len(videos) == 0 {
		s.log.Info("nothing to extract", "job_id", job.ID, "channel", job.Channel)
		return &Result{
			Success:     true,
			Outcome:     OutcomeCompleted,
			ChannelName: info.Name,
			Folder:      folder,
			TotalVideos: existingCount,
			Message:     "All videos already extracted",
		}, nil
	}

	existingComments, err := s.store.ExistingComments(folder)
	if err != nil {
		return nil, fmt.Errorf("counting existing comments: %w", err)
	}

	s.tracker.Update(func(st *State) {
		st.VideosTotal = len(videos)
		st.VideosCompleted = 0
		st.CommentsExtracted = existingComments
	})

	stats := storage.ChannelStats{
		TotalVideos:     totalAvailable,
		VideosExtracted: existingCount,
		TotalComments:   existingComments,
	}
	if err := s.store.SaveChannelInfo(folder, info, stats); err != nil {
		return nil, fmt.Errorf("saving channel info: %w", err)
	}

	workers := job.Workers
	if workers < 1 {
		workers = s.opts.DefaultWorkers
	}
	if workers > s.opts.MaxWorkers {
		workers = s.opts.MaxWorkers
	}
	s.log.Info("starting extraction",
		"job_id", job.ID, "channel", info.Name, "videos", len(videos), "workers", workers)

	results := s.fanOut(ctx, videos, workers)

	var (
		processed     int
		successful    int
		totalComments = existingComments
		rateLimited   bool
		stopped       bool
	)

	for res := range results {
		// Cooperative stop: checked between completions; in-flight fetches
		// are allowed to finish but are no longer consumed.
		if s.tracker.StopRequested() {
			s.log.Info("stop requested, cancelling remaining fetches", "job_id", job.ID)
			stopped = true
			cancel()
			break
		}

		processed++
		if res.err != nil {
			msg := res.err.Error()
			if IsRateLimit(msg) {
				s.log.Warn("rate limit detected, aborting extraction", "job_id", job.ID, "video", res.video.ID)
				rateLimited = true
				cancel()
				break
			}
			s.log.Warn("video fetch failed",
				"job_id", job.ID, "video", res.video.ID, "processed", processed, "total", len(videos), "err", msg)
			continue
		}

		// A unit's artifact and its counter contribution are applied from
		// this single loop, so pollers never see a half-applied unit.
		if err := s.store.SaveVideo(folder, res.data); err != nil {
			s.log.Warn("saving video artifact failed", "job_id", job.ID, "video", res.video.ID, "err", err)
			continue
		}
		successful++
		totalComments += res.data.CommentCount

		stats = storage.ChannelStats{
			TotalVideos:     totalAvailable,
			VideosExtracted: existingCount + successful,
			TotalComments:   totalComments,
		}
		if err := s.store.SaveChannelInfo(folder, info, stats); err != nil {
			s.log.Warn("updating channel info failed", "job_id", job.ID, "err", err)
		}

		title := res.data.Title
		s.tracker.Update(func(st *State) {
			st.VideosCompleted = successful
			st.CurrentVideo = title
			st.CommentsExtracted = totalComments
		})
		s.log.Info("video extracted",
			"job_id", job.ID, "video", res.video.ID, "comments", res.data.CommentCount,
			"processed", processed, "total", len(videos))
	}

	stopped = stopped || s.tracker.StopRequested()
	finalVideoCount := existingCount + successful

	result := &Result{
		Success:       !rateLimited,
		ChannelName:   info.Name,
		Folder:        folder,
		TotalVideos:   finalVideoCount,
		TotalComments: totalComments,
		Stopped:       stopped,
		RateLimited:   rateLimited,
	}
	switch {
	case rateLimited:
		result.Outcome = OutcomeRateLimited
		result.Message = "Rate limit hit (403). Try again later with fewer workers."
	case stopped:
		result.Outcome = OutcomeStopped
		result.Message = fmt.Sprintf("Extraction stopped, %d comments saved to %s/", totalComments, folder)
	default:
		result.Outcome = OutcomeCompleted
		result.Message = fmt.Sprintf("Extraction complete, %d comments in %d videos saved to %s/",
			totalComments, finalVideoCount, folder)
	}
	s.log.Info("extraction finished", "job_id", job.ID, "outcome", result.Outcome,
		"videos", finalVideoCount, "comments", totalComments)
	return result, nil
}

// fanOut fetches videos with at most `workers` in flight, delivering results
// in completion order. The results channel is buffered for the full unit
// list so fetchers never block after the consumer stops reading; cancelling
// ctx prevents new units from starting.
func (s *Service) fanOut(ctx context.Context, videos []youtube.Video, workers int) <-chan unitResult {
	units := make(chan youtube.Video)
	results := make(chan unitResult, len(videos))

	go func() {
		defer close(units)
		for _, v := range videos {
			select {
			case units <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range units {
				select {
				case <-ctx.Done():
					return
				default:
				}
				data, err := s.fetcher.FetchComments(ctx, v)
				results <- unitResult{video: v, data: data, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// IsRateLimit reports whether a fetch error carries the platform's
// throttling signature. Kept as a raw substring match on the error text;
// the fetcher does not guarantee structured HTTP status codes.
func IsRateLimit(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "403") || strings.Contains(lower, "forbidden")
}
