package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashnotes-backend/internal/flashcards"
	"flashnotes-backend/internal/models"
	"flashnotes-backend/internal/services"
)

type stubJobRepo struct {
	mu       sync.Mutex
	statuses []string
	cards    int
	errMsg   string
	retries  int
}

func (r *stubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *stubJobRepo) Complete(ctx context.Context, id uuid.UUID, cardCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, models.JobStatusCompleted)
	r.cards = cardCount
	return nil
}

func (r *stubJobRepo) UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errMsg = errMsg
	r.retries = retryCount
	return nil
}

type stubPipeline struct {
	notes string
	max   int
	cards []models.Flashcard
	err   error
}

func (p *stubPipeline) Generate(ctx context.Context, userID uuid.UUID, notes string, maxCards int) ([]models.Flashcard, error) {
	p.notes = notes
	p.max = maxCards
	return p.cards, p.err
}

type stubExtractor struct {
	text string
	err  error
}

func (e stubExtractor) ExtractFromPath(path string) (string, error) { return e.text, e.err }

type stubTranscripts struct{ text string }

func (s stubTranscripts) NotesFromURL(ctx context.Context, videoURL string) (string, error) {
	return s.text, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) last() models.WSMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgs[len(p.msgs)-1]
}

type chanQueue struct{ jobs chan *models.Job }

func (q chanQueue) Enqueue(ctx context.Context, job *models.Job) error {
	q.jobs <- job
	return nil
}

type recordingQuota struct{ released []string }

func (q *recordingQuota) Release(ctx context.Context, userID uuid.UUID, day string) error {
	q.released = append(q.released, day)
	return nil
}

type countingObserver struct{ statuses []string }

func (o *countingObserver) JobFinished(status string) { o.statuses = append(o.statuses, status) }

func newJob(t *testing.T, cfg models.JobConfig) *models.Job {
	t.Helper()
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	return &models.Job{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Type:       models.JobTypeFlashcardGeneration,
		ConfigJSON: raw,
		MaxRetries: 3,
	}
}

func TestRunJob_FileSuccess(t *testing.T) {
	upload := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(upload, []byte("ignored"), 0o644))

	jobs := &stubJobRepo{}
	pipeline := &stubPipeline{cards: []models.Flashcard{{Question: "Q?", Answer: "A."}}}
	pub := &recordingPublisher{}
	obs := &countingObserver{}
	pool := NewPool(Deps{
		Jobs:      jobs,
		Pipeline:  pipeline,
		Extractor: stubExtractor{text: "Mitochondria produce ATP."},
		Publisher: pub,
		Observer:  obs,
	}, 1)

	pool.RunJob(context.Background(), newJob(t, models.JobConfig{FilePath: upload, MaxCards: 4}))

	assert.Equal(t, "Mitochondria produce ATP.", pipeline.notes)
	assert.Equal(t, 4, pipeline.max)
	assert.Equal(t, []string{models.JobStatusProcessing, models.JobStatusCompleted}, jobs.statuses)
	assert.Equal(t, 1, jobs.cards)
	assert.Equal(t, []string{models.JobStatusCompleted}, obs.statuses)

	last := pub.last()
	assert.Equal(t, "completed", last.Type)
	assert.Len(t, last.Payload.(models.CompletedEvent).Flashcards, 1)

	_, err := os.Stat(upload)
	assert.True(t, os.IsNotExist(err), "upload is removed after the job")
}

func TestRunJob_YouTubeSource(t *testing.T) {
	pipeline := &stubPipeline{cards: []models.Flashcard{{Question: "Q?", Answer: "A."}}}
	pool := NewPool(Deps{
		Jobs:        &stubJobRepo{},
		Pipeline:    pipeline,
		Transcripts: stubTranscripts{text: "Transcript text here."},
	}, 1)

	pool.RunJob(context.Background(), newJob(t, models.JobConfig{YouTubeURL: "https://youtu.be/dQw4w9WgXcQ"}))

	assert.Equal(t, "Transcript text here.", pipeline.notes)
}

func TestRunJob_PermanentFailureSkipsRetry(t *testing.T) {
	jobs := &stubJobRepo{}
	pub := &recordingPublisher{}
	queue := chanQueue{jobs: make(chan *models.Job, 1)}
	pool := NewPool(Deps{
		Jobs:      jobs,
		Pipeline:  &stubPipeline{err: flashcards.ErrNoViableSentences},
		Extractor: stubExtractor{text: "ok."},
		Publisher: pub,
		Queue:     queue,
	}, 1)

	pool.RunJob(context.Background(), newJob(t, models.JobConfig{FilePath: filepath.Join(t.TempDir(), "gone.txt")}))

	assert.Equal(t, models.JobStatusFailed, jobs.statuses[len(jobs.statuses)-1])
	assert.Equal(t, 1, jobs.retries)
	assert.Empty(t, queue.jobs)

	last := pub.last()
	require.Equal(t, "error", last.Type)
	assert.Equal(t, "NO_VIABLE_SENTENCES", last.Payload.(models.ErrorEvent).ErrorCode)
}

func TestRunJob_FailedJobReleasesQuota(t *testing.T) {
	quota := &recordingQuota{}
	pool := NewPool(Deps{
		Jobs:      &stubJobRepo{},
		Pipeline:  &stubPipeline{err: flashcards.ErrNoViableSentences},
		Extractor: stubExtractor{text: "ok."},
		Quota:     quota,
	}, 1)

	pool.RunJob(context.Background(), newJob(t, models.JobConfig{FilePath: "notes.txt", QuotaDay: "2024-03-01"}))

	assert.Equal(t, []string{"2024-03-01"}, quota.released)
}

func TestRunJob_QuotaKeptOnSuccessAndRetry(t *testing.T) {
	quota := &recordingQuota{}
	cfg := models.JobConfig{FilePath: "notes.txt", QuotaDay: "2024-03-01"}

	NewPool(Deps{
		Jobs:      &stubJobRepo{},
		Pipeline:  &stubPipeline{cards: []models.Flashcard{{Question: "Q?", Answer: "A."}}},
		Extractor: stubExtractor{text: "notes."},
		Quota:     quota,
	}, 1).RunJob(context.Background(), newJob(t, cfg))

	queue := chanQueue{jobs: make(chan *models.Job, 1)}
	NewPool(Deps{
		Jobs:      &stubJobRepo{},
		Pipeline:  &stubPipeline{err: errors.New("timeout")},
		Extractor: stubExtractor{text: "notes."},
		Queue:     queue,
		Quota:     quota,
	}, 1).RunJob(context.Background(), newJob(t, cfg))
	<-queue.jobs

	assert.Empty(t, quota.released)
}

func TestRunJob_UnsupportedFileIsPermanent(t *testing.T) {
	jobs := &stubJobRepo{}
	pool := NewPool(Deps{
		Jobs:      jobs,
		Pipeline:  &stubPipeline{},
		Extractor: stubExtractor{err: services.ErrUnsupportedNoteFile},
		Queue:     chanQueue{jobs: make(chan *models.Job, 1)},
	}, 1)

	pool.RunJob(context.Background(), newJob(t, models.JobConfig{FilePath: "slides.pptx"}))

	assert.Equal(t, models.JobStatusFailed, jobs.statuses[len(jobs.statuses)-1])
}

func TestRunJob_TransientFailureRequeues(t *testing.T) {
	jobs := &stubJobRepo{}
	queue := chanQueue{jobs: make(chan *models.Job, 1)}
	pool := NewPool(Deps{
		Jobs:      jobs,
		Pipeline:  &stubPipeline{err: errors.New("redis unavailable")},
		Extractor: stubExtractor{text: "notes."},
		Queue:     queue,
	}, 1)

	job := newJob(t, models.JobConfig{FilePath: "notes.txt"})
	pool.RunJob(context.Background(), job)

	assert.Equal(t, models.JobStatusPending, jobs.statuses[len(jobs.statuses)-1])
	assert.Equal(t, "redis unavailable", jobs.errMsg)

	requeued := <-queue.jobs
	assert.Equal(t, job.ID, requeued.ID)
	assert.Equal(t, 1, requeued.RetryCount)
}

func TestRunJob_RetriesExhausted(t *testing.T) {
	jobs := &stubJobRepo{}
	queue := chanQueue{jobs: make(chan *models.Job, 1)}
	pool := NewPool(Deps{
		Jobs:      jobs,
		Pipeline:  &stubPipeline{err: errors.New("boom")},
		Extractor: stubExtractor{text: "notes."},
		Queue:     queue,
	}, 1)

	job := newJob(t, models.JobConfig{FilePath: "notes.txt"})
	job.RetryCount = 2
	pool.RunJob(context.Background(), job)

	assert.Equal(t, models.JobStatusFailed, jobs.statuses[len(jobs.statuses)-1])
	assert.Equal(t, 3, jobs.retries)
	assert.Empty(t, queue.jobs)
}

func TestRunJob_InvalidConfig(t *testing.T) {
	jobs := &stubJobRepo{}
	pool := NewPool(Deps{Jobs: jobs, Pipeline: &stubPipeline{}}, 1)

	job := newJob(t, models.JobConfig{})
	job.ConfigJSON = json.RawMessage(`"not an object"`)
	pool.RunJob(context.Background(), job)

	assert.Equal(t, models.JobStatusFailed, jobs.statuses[len(jobs.statuses)-1])
	assert.Contains(t, jobs.errMsg, "invalid job config")
}

func TestUserChannel(t *testing.T) {
	id := uuid.MustParse("6f1c1f0e-7b9a-4a57-9d5e-1d2b3c4d5e6f")
	assert.Equal(t, "user_updates:6f1c1f0e-7b9a-4a57-9d5e-1d2b3c4d5e6f", UserChannel(id))
}
