package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flashnotes-backend/internal/flashcards"
	"flashnotes-backend/internal/models"
	"flashnotes-backend/internal/services"
)

const (
	popTimeout  = 5 * time.Second
	lockTTL     = 10 * time.Minute
	jobDeadline = 5 * time.Minute
)

type jobRepository interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Complete(ctx context.Context, id uuid.UUID, cardCount int) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type flashcardGenerator interface {
	Generate(ctx context.Context, userID uuid.UUID, notes string, maxCards int) ([]models.Flashcard, error)
}

type noteExtractor interface {
	ExtractFromPath(path string) (string, error)
}

type transcriptSource interface {
	NotesFromURL(ctx context.Context, videoURL string) (string, error)
}

type quotaReleaser interface {
	Release(ctx context.Context, userID uuid.UUID, day string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

type JobObserver interface {
	JobFinished(status string)
}

type Deps struct {
	Redis       *redis.Client
	Jobs        jobRepository
	Pipeline    flashcardGenerator
	Extractor   noteExtractor
	Transcripts transcriptSource
	Queue       Enqueuer
	Publisher   Publisher
	Quota       quotaReleaser
	Logger      *zap.Logger
	Observer    JobObserver
}

// Pool runs flashcard-generation jobs taken from the Redis queue.
type Pool struct {
	Deps
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(deps Deps, workerCount int) *Pool {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		Deps:        deps,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.Logger.Info("worker pool started", zap.Int("workers", p.workerCount))
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.Logger.With(zap.Int("worker", id))

	for {
		select {
		case <-p.stopChan:
			log.Info("worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		result, err := p.Redis.BLPop(ctx, popTimeout, FlashcardQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn("queue pop failed", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error("failed to parse job", zap.Error(err))
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.Redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue
		}

		p.RunJob(ctx, &job)

		p.Redis.Del(ctx, lockKey)
	}
}

// RunJob processes one job and records its outcome.
func (p *Pool) RunJob(ctx context.Context, job *models.Job) {
	log := p.Logger.With(zap.String("job_id", job.ID.String()), zap.String("user_id", job.UserID.String()))
	log.Info("processing job", zap.String("type", job.Type), zap.Int("attempt", job.RetryCount+1))

	p.Jobs.UpdateStatus(ctx, job.ID, models.JobStatusProcessing)
	p.publish(ctx, job.UserID, models.WSMessage{
		Type:    "status_update",
		Payload: models.StatusUpdate{JobID: job.ID, Step: 1, StepName: "Reading notes"},
	})

	jobCtx, cancel := context.WithTimeout(ctx, jobDeadline)
	cards, err := p.process(jobCtx, job)
	cancel()

	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, cards)
}

func (p *Pool) process(ctx context.Context, job *models.Job) ([]models.Flashcard, error) {
	if job.Type != models.JobTypeFlashcardGeneration {
		return nil, permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}

	var cfg models.JobConfig
	if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil {
		return nil, permanent(fmt.Errorf("invalid job config: %w", err))
	}

	var (
		notes string
		err   error
	)
	switch {
	case cfg.FilePath != "":
		notes, err = p.Extractor.ExtractFromPath(cfg.FilePath)
		if errors.Is(err, services.ErrUnsupportedNoteFile) {
			err = permanent(err)
		}
	case cfg.YouTubeURL != "":
		notes, err = p.Transcripts.NotesFromURL(ctx, cfg.YouTubeURL)
	default:
		err = permanent(errors.New("job has neither a file nor a video"))
	}
	if err != nil {
		return nil, err
	}

	p.publish(ctx, job.UserID, models.WSMessage{
		Type:    "status_update",
		Payload: models.StatusUpdate{JobID: job.ID, Step: 2, StepName: "Generating flashcards"},
	})

	cards, err := p.Pipeline.Generate(ctx, job.UserID, notes, cfg.MaxCards)
	if err != nil {
		switch flashcards.KindOf(err) {
		case flashcards.KindInput, flashcards.KindNoViableSentences:
			return nil, permanent(err)
		}
		return nil, err
	}
	return cards, nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, cards []models.Flashcard) {
	if err := p.Jobs.Complete(ctx, job.ID, len(cards)); err != nil {
		p.Logger.Error("failed to mark job completed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	p.cleanup(job)

	p.publish(ctx, job.UserID, models.WSMessage{
		Type:    "completed",
		Payload: models.CompletedEvent{JobID: job.ID, Flashcards: cards},
	})
	p.observe(models.JobStatusCompleted)

	p.Logger.Info("job completed", zap.String("job_id", job.ID.String()), zap.Int("cards", len(cards)))
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()
	log := p.Logger.With(zap.String("job_id", job.ID.String()), zap.Int("attempt", job.RetryCount))

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var perm *permanentError
	if !errors.As(err, &perm) && job.RetryCount < maxRetries && p.Queue != nil {
		log.Warn("job failed, retrying", zap.Error(err))
		p.Jobs.UpdateStatus(ctx, job.ID, models.JobStatusPending)
		p.Jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		retry := *job
		time.AfterFunc(backoff, func() {
			if err := p.Queue.Enqueue(context.Background(), &retry); err != nil {
				p.Logger.Error("failed to requeue job", zap.String("job_id", retry.ID.String()), zap.Error(err))
			}
		})
		return
	}

	log.Error("job failed permanently", zap.Error(err))
	p.Jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
	p.Jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.cleanup(job)
	p.releaseQuota(ctx, job)

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    failureCode(err),
			ErrorMessage: errMsg,
		},
	})
	p.observe(models.JobStatusFailed)
}

// cleanup removes the uploaded file once the job no longer needs it.
func (p *Pool) cleanup(job *models.Job) {
	var cfg models.JobConfig
	if json.Unmarshal(job.ConfigJSON, &cfg) != nil || cfg.FilePath == "" {
		return
	}
	if err := os.Remove(cfg.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.Logger.Warn("failed to remove upload", zap.String("path", cfg.FilePath), zap.Error(err))
	}
}

// releaseQuota gives back the generation a failed job was charged.
func (p *Pool) releaseQuota(ctx context.Context, job *models.Job) {
	var cfg models.JobConfig
	if p.Quota == nil || json.Unmarshal(job.ConfigJSON, &cfg) != nil || cfg.QuotaDay == "" {
		return
	}
	if err := p.Quota.Release(ctx, job.UserID, cfg.QuotaDay); err != nil {
		p.Logger.Warn("failed to release quota", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if p.Publisher == nil {
		return
	}
	if err := p.Publisher.Publish(ctx, userID, msg); err != nil {
		p.Logger.Warn("failed to publish job event", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (p *Pool) observe(status string) {
	if p.Observer != nil {
		p.Observer.JobFinished(status)
	}
}

func failureCode(err error) string {
	switch flashcards.KindOf(err) {
	case flashcards.KindInput:
		return "EMPTY_INPUT"
	case flashcards.KindNoViableSentences:
		return "NO_VIABLE_SENTENCES"
	}
	return "JOB_FAILED"
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }
