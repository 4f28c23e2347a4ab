package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcomments/internal/storage"
	"ytcomments/internal/youtube"
)

// fakeResolver serves a fixed video list; it can fail or panic on demand.
type fakeResolver struct {
	mu        sync.Mutex
	calls     int
	videos    []youtube.Video
	info      youtube.ChannelInfo
	err       error
	panicOnce bool
}

func (f *fakeResolver) ListVideos(ctx context.Context, channel string) ([]youtube.Video, youtube.ChannelInfo, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if f.panicOnce && first {
		panic("resolver exploded")
	}
	if f.err != nil {
		return nil, youtube.ChannelInfo{}, f.err
	}
	info := f.info
	if info.Name == "" {
		info.Name = "Channel " + channel
	}
	return f.videos, info, nil
}

// fakeFetcher returns canned comments per video, with optional per-video
// errors and a hook invoked before each fetch.
type fakeFetcher struct {
	mu          sync.Mutex
	fetched     []string
	inFlight    int
	peakFlight  int
	perVideo    int
	delay       time.Duration
	errFor      map[string]error
	beforeFetch func(ctx context.Context, videoID string, nth int)
}

func (f *fakeFetcher) FetchComments(ctx context.Context, v youtube.Video) (youtube.VideoComments, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, v.ID)
	nth := len(f.fetched)
	f.inFlight++
	if f.inFlight > f.peakFlight {
		f.peakFlight = f.inFlight
	}
	hook := f.beforeFetch
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hook != nil {
		hook(ctx, v.ID, nth)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return youtube.VideoComments{VideoID: v.ID}, err
	}
	if err := f.errFor[v.ID]; err != nil {
		return youtube.VideoComments{VideoID: v.ID}, err
	}

	n := f.perVideo
	if n == 0 {
		n = 2
	}
	comments := make([]youtube.Comment, n)
	for i := range comments {
		comments[i] = youtube.Comment{Author: "user", Text: fmt.Sprintf("comment %d on %s", i, v.ID), Parent: "root"}
	}
	return youtube.VideoComments{
		VideoID:      v.ID,
		Title:        v.Title,
		URL:          v.URL,
		CommentCount: n,
		Comments:     comments,
	}, nil
}

func (f *fakeFetcher) fetchedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// memStore is an in-memory ArtifactStore.
type memStore struct {
	mu        sync.Mutex
	preloaded map[string]int
	saved     map[string]youtube.VideoComments
	folders   []string
	lastStats storage.ChannelStats
}

func newMemStore() *memStore {
	return &memStore{
		preloaded: make(map[string]int),
		saved:     make(map[string]youtube.VideoComments),
	}
}

func (s *memStore) DownloadedIDs(folder string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{})
	for id := range s.preloaded {
		ids[id] = struct{}{}
	}
	for id := range s.saved {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *memStore) ExistingComments(folder string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.preloaded {
		total += n
	}
	return total, nil
}

func (s *memStore) SaveVideo(folder string, vc youtube.VideoComments) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[vc.VideoID] = vc
	return nil
}

func (s *memStore) SaveChannelInfo(folder string, info youtube.ChannelInfo, stats storage.ChannelStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.folders) == 0 || s.folders[len(s.folders)-1] != folder {
		s.folders = append(s.folders, folder)
	}
	s.lastStats = stats
	return nil
}

func (s *memStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func makeVideos(n int) []youtube.Video {
	videos := make([]youtube.Video, n)
	for i := range videos {
		videos[i] = youtube.Video{ID: fmt.Sprintf("vid%02d", i+1), Title: fmt.Sprintf("Video %d", i+1)}
	}
	return videos
}

func startService(t *testing.T, resolver ChannelResolver, fetcher CommentFetcher, store ArtifactStore, opts Options) *Service {
	t.Helper()
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = 10
	}
	svc := NewService(nil, resolver, fetcher, store, opts)
	svc.Start()
	t.Cleanup(svc.Shutdown)
	return svc
}

// waitFinished polls the registry until the job reaches a terminal status.
func waitFinished(t *testing.T, svc *Service, jobID string) Entry {
	t.Helper()
	var entry Entry
	require.Eventually(t, func() bool {
		_, queue := svc.Status()
		for _, e := range queue {
			if e.ID == jobID && e.Status.terminal() {
				entry = e
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond, "job %s never finished", jobID)
	return entry
}

func TestExtractionCompletes(t *testing.T) {
	tests := []struct {
		name    string
		workers int
	}{
		{"single worker", 1},
		{"small fan-out", 4},
		{"wide fan-out", 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{videos: makeVideos(12)}
			fetcher := &fakeFetcher{
				perVideo: 3,
				errFor: map[string]error{
					"vid03": errors.New("comments disabled"),
					"vid09": errors.New("private video"),
				},
			}
			store := newMemStore()
			svc := startService(t, resolver, fetcher, store, Options{DefaultWorkers: 2, MaxWorkers: 32})

			jobID, err := svc.Submit("@somechannel", 0, true, tt.workers)
			require.NoError(t, err)

			entry := waitFinished(t, svc, jobID)
			require.Equal(t, StatusCompleted, entry.Status)
			require.NotNil(t, entry.Result)

			// Per-unit failures are skipped; every counter reflects exactly
			// the persisted artifacts.
			assert.Equal(t, OutcomeCompleted, entry.Result.Outcome)
			assert.Equal(t, 10, store.savedCount())
			assert.Equal(t, 10, entry.Result.TotalVideos)
			assert.Equal(t, 30, entry.Result.TotalComments)
			assert.Equal(t, 10, store.lastStats.VideosExtracted)
			assert.Equal(t, 30, store.lastStats.TotalComments)

			state, _ := svc.Status()
			assert.Equal(t, State{}, state, "state must reset at the job boundary")
		})
	}
}

func TestJobsRunInSubmissionOrder(t *testing.T) {
	resolver := &fakeResolver{videos: makeVideos(1)}
	store := newMemStore()
	svc := startService(t, resolver, &fakeFetcher{}, store, Options{})

	var jobIDs []string
	for _, ch := range []string{"@first", "@second", "@third"} {
		id, err := svc.Submit(ch, 0, false, 1)
		require.NoError(t, err)
		jobIDs = append(jobIDs, id)
	}
	for _, id := range jobIDs {
		waitFinished(t, svc, id)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"@first", "@second", "@third"}, store.folders)
}

func TestSkipExistingNothingToDo(t *testing.T) {
	resolver := &fakeResolver{videos: makeVideos(3)}
	fetcher := &fakeFetcher{}
	store := newMemStore()
	store.preloaded = map[string]int{"vid01": 5, "vid02": 5, "vid03": 5}
	svc := startService(t, resolver, fetcher, store, Options{})

	jobID, err := svc.Submit("@done", 0, true, 2)
	require.NoError(t, err)

	entry := waitFinished(t, svc, jobID)
	require.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, "All videos already extracted", entry.Result.Message)
	assert.Equal(t, 3, entry.Result.TotalVideos)
	assert.Zero(t, fetcher.fetchedCount(), "no unit may be fetched when everything exists")
}

func TestLimitTruncatesVideoList(t *testing.T) {
	resolver := &fakeResolver{videos: makeVideos(10)}
	fetcher := &fakeFetcher{}
	store := newMemStore()
	svc := startService(t, resolver, fetcher, store, Options{})

	jobID, err := svc.Submit("@big", 3, false, 1)
	require.NoError(t, err)

	entry := waitFinished(t, svc, jobID)
	require.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, 3, fetcher.fetchedCount())
	assert.Equal(t, 3, store.savedCount())
}

func TestRateLimitAbortsExtraction(t *testing.T) {
	resolver := &fakeResolver{videos: makeVideos(8)}
	fetcher := &fakeFetcher{
		perVideo: 2,
		errFor:   map[string]error{"vid04": errors.New("HTTP Error 403: Forbidden")},
		beforeFetch: func(ctx context.Context, videoID string, nth int) {
			// Units past the failing one wait for the abort instead of
			// completing, keeping the fetch count deterministic.
			if nth > 4 {
				<-ctx.Done()
			}
		},
	}
	store := newMemStore()
	svc := startService(t, resolver, fetcher, store, Options{})

	jobID, err := svc.Submit("@throttled", 0, false, 1)
	require.NoError(t, err)

	entry := waitFinished(t, svc, jobID)
	require.Equal(t, StatusError, entry.Status)
	assert.Equal(t, OutcomeRateLimited, entry.Result.Outcome)
	assert.True(t, entry.Result.RateLimited)
	assert.False(t, entry.Result.Success)

	// Everything before the 403 stays persisted; nothing after it does.
	assert.Equal(t, 3, store.savedCount())
	assert.Equal(t, 3, entry.Result.TotalVideos)
	assert.Equal(t, 6, entry.Result.TotalComments)
	assert.LessOrEqual(t, fetcher.fetchedCount(), 5)

	state, _ := svc.Status()
	assert.Equal(t, State{}, state)
}

func TestStopRequestEndsRunEarly(t *testing.T) {
	resolver := &fakeResolver{videos: makeVideos(20)}
	store := newMemStore()

	var svc *Service
	fetcher := &fakeFetcher{
		perVideo: 1,
		delay:    2 * time.Millisecond,
		beforeFetch: func(ctx context.Context, videoID string, nth int) {
			if nth == 5 {
				assert.True(t, svc.RequestStop())
			}
		},
	}
	svc = startService(t, resolver, fetcher, store, Options{DefaultWorkers: 4, MaxWorkers: 8})

	jobID, err := svc.Submit("@stopme", 0, false, 4)
	require.NoError(t, err)

	entry := waitFinished(t, svc, jobID)
	require.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, OutcomeStopped, entry.Result.Outcome)
	assert.True(t, entry.Result.Stopped)
	assert.Less(t, store.savedCount(), 20)
	assert.Equal(t, store.savedCount(), entry.Result.TotalVideos)

	state, _ := svc.Status()
	assert.Equal(t, State{}, state)
}

func TestResolverFailureIsFatal(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("channel does not exist")}
	svc := startService(t, resolver, &fakeFetcher{}, newMemStore(), Options{})

	jobID, err := svc.Submit("@missing", 0, false, 1)
	require.NoError(t, err)

	entry := waitFinished(t, svc, jobID)
	assert.Equal(t, StatusError, entry.Status)
	assert.Contains(t, entry.Result.Error, "channel does not exist")
}

func TestPanicBecomesErrorEntryAndLoopSurvives(t *testing.T) {
	resolver := &fakeResolver{panicOnce: true, videos: makeVideos(2)}
	store := newMemStore()
	svc := startService(t, resolver, &fakeFetcher{}, store, Options{})

	first, err := svc.Submit("@boom", 0, false, 1)
	require.NoError(t, err)
	second, err := svc.Submit("@fine", 0, false, 1)
	require.NoError(t, err)

	entry := waitFinished(t, svc, first)
	assert.Equal(t, StatusError, entry.Status)
	assert.Contains(t, entry.Result.Error, "internal error")

	entry = waitFinished(t, svc, second)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, 2, store.savedCount())
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	resolver := &fakeResolver{}
	svc := NewService(nil, resolver, &fakeFetcher{}, newMemStore(), Options{QueueCapacity: 1})

	first, err := svc.Submit("@one", 0, false, 1)
	require.NoError(t, err)

	_, err = svc.Submit("@two", 0, false, 1)
	require.ErrorIs(t, err, ErrQueueFull)

	// The rejected job leaves no registry entry behind.
	_, queue := svc.Status()
	require.Len(t, queue, 1)
	assert.Equal(t, first, queue[0].ID)

	svc.Start()
	svc.Shutdown()
}

func TestFanOutRespectsWorkerCap(t *testing.T) {
	resolver := &fakeResolver{videos: makeVideos(12)}
	fetcher := &fakeFetcher{delay: 5 * time.Millisecond}
	svc := startService(t, resolver, fetcher, newMemStore(), Options{DefaultWorkers: 2, MaxWorkers: 4})

	jobID, err := svc.Submit("@wide", 0, false, 64)
	require.NoError(t, err)
	waitFinished(t, svc, jobID)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.LessOrEqual(t, fetcher.peakFlight, 4, "fan-out must be clamped to the configured maximum")
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"HTTP Error 403: Forbidden", true},
		{"server said FORBIDDEN", true},
		{"got status 403 from upstream", true},
		{"HTTP Error 429: Too Many Requests", false},
		{"connection reset by peer", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimit(tt.msg), "msg=%q", tt.msg)
	}
}
