package modeling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcomments/internal/nlp"
	"ytcomments/internal/storage"
	"ytcomments/internal/topics"
)

type fakeLoader struct {
	comments []string
	meta     []storage.CommentMeta
	err      error
}

func (f *fakeLoader) LoadComments(channels []string) ([]string, []storage.CommentMeta, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return append([]string(nil), f.comments...), append([]storage.CommentMeta(nil), f.meta...), nil
}

// fakePre passes documents through, blanking the configured indexes.
type fakePre struct {
	drop map[int]bool
}

func (f *fakePre) ProcessBatch(docs []string, onProgress func(pct int, message string)) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		if f.drop[i] {
			continue
		}
		out[i] = strings.ToLower(d)
	}
	if onProgress != nil {
		onProgress(100, "Preprocessed")
	}
	return out
}

func (f *fakePre) Statistics(original, processed []string) nlp.Stats {
	return nlp.Stats{OriginalDocuments: len(original), ProcessedDocuments: len(processed)}
}

// fakeModel is a deterministic stand-in for a trained topic model.
type fakeModel struct {
	k       int
	fitDocs []string
	fitErr  error
}

func (m *fakeModel) Fit(docs []string, onProgress func(pct int, message string)) error {
	m.fitDocs = append([]string(nil), docs...)
	if onProgress != nil {
		onProgress(100, "Trained")
	}
	return m.fitErr
}

func (m *fakeModel) Topics(topN int) []topics.Topic {
	out := make([]topics.Topic, m.k)
	for i := range out {
		out[i] = topics.Topic{ID: i, Label: fmt.Sprintf("Topic %d", i)}
	}
	return out
}

func (m *fakeModel) DocumentTopics() [][]float64 {
	rows := make([][]float64, len(m.fitDocs))
	for i := range rows {
		row := make([]float64, m.k)
		row[i%m.k] = 1
		rows[i] = row
	}
	return rows
}

func (m *fakeModel) RepresentativeDocuments(originalDocs []string, topicID, n int) []string {
	if n > len(originalDocs) {
		n = len(originalDocs)
	}
	return append([]string(nil), originalDocs[:n]...)
}

func (m *fakeModel) Diversity() float64   { return 1 }
func (m *fakeModel) Info() map[string]any { return map[string]any{"algorithm": "fake"} }

// recordPersister captures external persistence calls.
type recordPersister struct {
	mu            sync.Mutex
	statusUpdates []string
	savedResults  []string
	deleted       []string
	saveErr       error
}

func (p *recordPersister) CreateJob(ctx context.Context, jobID string, channels []string, algorithm string, numTopics int, createdAt time.Time) error {
	return nil
}

func (p *recordPersister) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusUpdates = append(p.statusUpdates, jobID+":"+status)
	return nil
}

func (p *recordPersister) SaveResult(ctx context.Context, jobID string, result any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.savedResults = append(p.savedResults, jobID)
	return p.saveErr
}

func (p *recordPersister) DeleteJob(ctx context.Context, jobID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, jobID)
	return true, nil
}

func makeCorpus(n int) ([]string, []storage.CommentMeta) {
	comments := make([]string, n)
	meta := make([]storage.CommentMeta, n)
	for i := range comments {
		comments[i] = fmt.Sprintf("Great video number %d", i)
		meta[i] = storage.CommentMeta{Channel: "@ch", VideoID: fmt.Sprintf("vid%02d", i)}
	}
	return comments, meta
}

func startModeling(t *testing.T, loader CorpusLoader, persister ResultPersister, k int) *Service {
	t.Helper()
	svc := NewService(nil, loader, persister, nil, Options{QueueCapacity: 10})
	svc.SetPreprocessorFactory(func(language string) Preprocessor { return &fakePre{} })
	svc.SetModelFactory(func(algorithm string, cfg topics.Config) (topics.Model, error) {
		if algorithm != topics.AlgorithmLDA && algorithm != topics.AlgorithmNMF {
			return nil, fmt.Errorf("%w: %s", topics.ErrUnknownAlgorithm, algorithm)
		}
		return &fakeModel{k: k}, nil
	})
	svc.Start()
	t.Cleanup(svc.Shutdown)
	return svc
}

// waitTerminal polls until the job record leaves queued/running.
func waitTerminal(t *testing.T, svc *Service, jobID string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		j, ok := svc.store.Get(jobID)
		if !ok {
			return false
		}
		job = j
		return j.Status == StatusCompleted || j.Status == StatusError
	}, 5*time.Second, 5*time.Millisecond, "job %s never finished", jobID)
	return job
}

func TestModelingSuccess(t *testing.T) {
	comments, meta := makeCorpus(20)
	persister := &recordPersister{}
	svc := startModeling(t, &fakeLoader{comments: comments, meta: meta}, persister, 3)

	jobID, err := svc.Submit([]string{"@ch"}, "lda", Params{NumTopics: 3})
	require.NoError(t, err)

	job := waitTerminal(t, svc, jobID)
	require.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.Result)

	res := job.Result
	assert.True(t, res.Success)
	assert.Equal(t, "lda", res.Algorithm)
	assert.Equal(t, 20, res.ValidComments)
	assert.Len(t, res.Topics, 3)
	assert.Len(t, res.DocumentTopics, 20)
	assert.Len(t, res.Metadata, 20)

	// Live state resets after success.
	st := svc.tracker.Snapshot()
	assert.Equal(t, StageIdle, st.Stage)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, "Modeling completed", st.Message)

	status, err := svc.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)

	persister.mu.Lock()
	defer persister.mu.Unlock()
	assert.Contains(t, persister.savedResults, jobID)
}

func TestUnsupportedAlgorithmEndsInError(t *testing.T) {
	comments, meta := makeCorpus(20)
	svc := startModeling(t, &fakeLoader{comments: comments, meta: meta}, &recordPersister{}, 3)

	jobID, err := svc.Submit([]string{"@ch"}, "bogus", Params{})
	require.NoError(t, err, "submission itself must succeed")

	job := waitTerminal(t, svc, jobID)
	assert.Equal(t, StatusError, job.Status)
	require.NotNil(t, job.Result)
	assert.Contains(t, job.Result.Error, "bogus")

	st := svc.tracker.Snapshot()
	assert.False(t, st.Active)
	assert.Equal(t, StageIdle, st.Stage)
	assert.Contains(t, st.Message, "Error:")
}

func TestEmptyCorpusFailsJob(t *testing.T) {
	svc := startModeling(t, &fakeLoader{}, &recordPersister{}, 3)

	jobID, err := svc.Submit([]string{"@empty"}, "lda", Params{})
	require.NoError(t, err)

	job := waitTerminal(t, svc, jobID)
	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Result.Error, "no comments found")
	assert.Contains(t, job.Result.Error, "@empty")
}

func TestTooFewDocumentsFailsJob(t *testing.T) {
	comments, meta := makeCorpus(3)
	svc := startModeling(t, &fakeLoader{comments: comments, meta: meta}, &recordPersister{}, 5)

	jobID, err := svc.Submit([]string{"@ch"}, "lda", Params{NumTopics: 5})
	require.NoError(t, err)

	job := waitTerminal(t, svc, jobID)
	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Result.Error, "too few valid documents")
}

func TestFilteringKeepsCorpusAligned(t *testing.T) {
	comments, meta := makeCorpus(6)
	svc := NewService(nil, &fakeLoader{comments: comments, meta: meta}, nil, nil, Options{QueueCapacity: 10})
	svc.SetPreprocessorFactory(func(language string) Preprocessor {
		return &fakePre{drop: map[int]bool{2: true, 4: true}}
	})
	model := &fakeModel{k: 2}
	svc.SetModelFactory(func(algorithm string, cfg topics.Config) (topics.Model, error) {
		return model, nil
	})
	svc.Start()
	t.Cleanup(svc.Shutdown)

	jobID, err := svc.Submit([]string{"@ch"}, "lda", Params{NumTopics: 2})
	require.NoError(t, err)

	job := waitTerminal(t, svc, jobID)
	require.Equal(t, StatusCompleted, job.Status)

	res := job.Result
	assert.Equal(t, 6, res.TotalComments)
	assert.Equal(t, 4, res.ValidComments, "two documents were dropped")
	require.Len(t, res.Metadata, 4)
	require.Len(t, res.DocumentTopics, 4)
	require.Len(t, model.fitDocs, 4)

	// Dropping indexes 2 and 4 keeps originals 0, 1, 3, 5 in order.
	assert.Equal(t, "vid00", res.Metadata[0].VideoID)
	assert.Equal(t, "vid01", res.Metadata[1].VideoID)
	assert.Equal(t, "vid03", res.Metadata[2].VideoID)
	assert.Equal(t, "vid05", res.Metadata[3].VideoID)
}

func TestPersistFailureKeepsJobCompleted(t *testing.T) {
	comments, meta := makeCorpus(10)
	persister := &recordPersister{saveErr: errors.New("database is down")}
	svc := startModeling(t, &fakeLoader{comments: comments, meta: meta}, persister, 2)

	jobID, err := svc.Submit([]string{"@ch"}, "nmf", Params{NumTopics: 2})
	require.NoError(t, err)

	job := waitTerminal(t, svc, jobID)
	assert.Equal(t, StatusCompleted, job.Status, "external persistence is best-effort")
	require.NotNil(t, job.Result)
	assert.True(t, job.Result.Success)
}

func TestJobsRunInSubmissionOrder(t *testing.T) {
	comments, meta := makeCorpus(10)
	persister := &recordPersister{}
	svc := startModeling(t, &fakeLoader{comments: comments, meta: meta}, persister, 2)

	first, err := svc.Submit([]string{"@a"}, "lda", Params{NumTopics: 2})
	require.NoError(t, err)
	second, err := svc.Submit([]string{"@b"}, "lda", Params{NumTopics: 2})
	require.NoError(t, err)

	waitTerminal(t, svc, first)
	waitTerminal(t, svc, second)

	persister.mu.Lock()
	defer persister.mu.Unlock()
	assert.Equal(t, []string{first + ":running", second + ":running"}, persister.statusUpdates)
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	comments, meta := makeCorpus(10)
	svc := NewService(nil, &fakeLoader{comments: comments, meta: meta}, nil, nil, Options{QueueCapacity: 1})

	_, err := svc.Submit([]string{"@one"}, "lda", Params{})
	require.NoError(t, err)
	_, err = svc.Submit([]string{"@two"}, "lda", Params{})
	require.ErrorIs(t, err, ErrQueueFull)

	_, total := svc.List(ListFilter{})
	assert.Equal(t, 1, total, "rejected submissions leave no record behind")

	svc.Start()
	svc.Shutdown()
}

func TestStatusAndResultErrors(t *testing.T) {
	svc := NewService(nil, &fakeLoader{}, nil, nil, Options{QueueCapacity: 10})

	_, err := svc.Status("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = svc.ResultFor("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobID, err := svc.Submit([]string{"@ch"}, "lda", Params{})
	require.NoError(t, err)

	// Still queued: a result request is premature.
	_, err = svc.ResultFor(jobID)
	assert.ErrorIs(t, err, ErrNotCompleted)

	status, err := svc.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, status.Status)

	svc.Start()
	svc.Shutdown()
}

func TestDeleteCascades(t *testing.T) {
	comments, meta := makeCorpus(10)
	persister := &recordPersister{}
	svc := startModeling(t, &fakeLoader{comments: comments, meta: meta}, persister, 2)

	jobID, err := svc.Submit([]string{"@ch"}, "lda", Params{NumTopics: 2})
	require.NoError(t, err)
	waitTerminal(t, svc, jobID)

	require.True(t, svc.Delete(jobID))
	_, err = svc.Status(jobID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	persister.mu.Lock()
	defer persister.mu.Unlock()
	assert.Contains(t, persister.deleted, jobID)
}
