package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flashnotes-backend/internal/middleware"
	"flashnotes-backend/internal/models"
	"flashnotes-backend/internal/services"
)

const (
	previewMaxCards = 3
	maxNotesBody    = 1 << 20
	maxUploadSize   = 20 << 20
)

type flashcardPipeline interface {
	Generate(ctx context.Context, userID uuid.UUID, notes string, maxCards int) ([]models.Flashcard, error)
	Preview(ctx context.Context, notes string, maxCards int) ([]models.Flashcard, error)
	Fetch(ctx context.Context, userID uuid.UUID) ([]models.StoredFlashcard, error)
}

type quotaReserver interface {
	Reserve(ctx context.Context, userID uuid.UUID, tier string) (refund func(), err error)
	ReserveDay(ctx context.Context, userID uuid.UUID, tier string) (day string, refund func(), err error)
}

type jobCreator interface {
	Create(ctx context.Context, j *models.Job) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type FlashcardHandler struct {
	pipeline    flashcardPipeline
	quota       quotaReserver
	jobs        jobCreator
	queue       jobEnqueuer
	storagePath string
	logger      *zap.Logger
}

func NewFlashcardHandler(pipeline flashcardPipeline, quota quotaReserver, jobs jobCreator, queue jobEnqueuer, storagePath string, logger *zap.Logger) *FlashcardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlashcardHandler{
		pipeline:    pipeline,
		quota:       quota,
		jobs:        jobs,
		queue:       queue,
		storagePath: storagePath,
		logger:      logger,
	}
}

func (h *FlashcardHandler) decodeNotes(w http.ResponseWriter, r *http.Request) (models.GenerateFlashcardsRequest, bool) {
	var req models.GenerateFlashcardsRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxNotesBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return req, false
	}
	if err := services.ValidateStruct(req); err != nil {
		handleServiceError(w, r, err)
		return req, false
	}
	return req, true
}

// Generate turns notes into flashcards for the caller and stores them.
func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeNotes(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	refund, err := h.quota.Reserve(r.Context(), userID, middleware.GetTier(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	cards, err := h.pipeline.Generate(r.Context(), userID, req.Notes, req.MaxCards)
	if err != nil {
		refund()
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.FlashcardsResponse{Flashcards: cards})
}

// Preview runs generation for anonymous visitors without storing anything.
func (h *FlashcardHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeNotes(w, r)
	if !ok {
		return
	}

	maxCards := req.MaxCards
	if maxCards <= 0 || maxCards > previewMaxCards {
		maxCards = previewMaxCards
	}

	cards, err := h.pipeline.Preview(r.Context(), req.Notes, maxCards)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.FlashcardsResponse{Flashcards: cards})
}

func (h *FlashcardHandler) List(w http.ResponseWriter, r *http.Request) {
	cards, err := h.pipeline.Fetch(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to fetch flashcards", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An internal server error occurred.", r))
		return
	}

	writeJSON(w, http.StatusOK, models.StoredFlashcardsResponse{Flashcards: cards})
}

// CreateJob accepts an uploaded note file or a YouTube link and queues
// generation for the worker pool.
func (h *FlashcardHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var (
		cfg models.JobConfig
		ok  bool
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		cfg, ok = h.saveUpload(w, r)
	} else {
		cfg, ok = h.decodeVideo(w, r)
	}
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	day, refund, err := h.quota.ReserveDay(r.Context(), userID, middleware.GetTier(r.Context()))
	if err != nil {
		removeUpload(cfg)
		handleServiceError(w, r, err)
		return
	}
	cfg.QuotaDay = day

	configBytes, _ := json.Marshal(cfg)
	job := &models.Job{
		UserID:     userID,
		Type:       models.JobTypeFlashcardGeneration,
		ConfigJSON: configBytes,
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		refund()
		removeUpload(cfg)
		h.logger.Error("failed to create job", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		refund()
		removeUpload(cfg)
		h.logger.Error("failed to enqueue job", zap.String("job_id", job.ID.String()), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *FlashcardHandler) decodeVideo(w http.ResponseWriter, r *http.Request) (models.JobConfig, bool) {
	var req models.CreateFlashcardJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return models.JobConfig{}, false
	}
	if err := services.ValidateStruct(req); err != nil {
		handleServiceError(w, r, err)
		return models.JobConfig{}, false
	}
	if services.ExtractVideoID(req.YouTubeURL) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"youtube_url": "must be a YouTube video link"}, r))
		return models.JobConfig{}, false
	}
	return models.JobConfig{YouTubeURL: req.YouTubeURL, MaxCards: req.MaxCards}, true
}

func (h *FlashcardHandler) saveUpload(w http.ResponseWriter, r *http.Request) (models.JobConfig, bool) {
	if r.ContentLength > maxUploadSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 20MB limit", r))
		return models.JobConfig{}, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return models.JobConfig{}, false
	}
	defer file.Close()

	if !services.SupportedNoteFile(header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "Upload a .txt, .pdf or .docx file", r))
		return models.JobConfig{}, false
	}

	maxCards := 0
	if v := r.FormValue("max_cards"); v != "" {
		maxCards, err = strconv.Atoi(v)
		if err != nil || maxCards < 1 || maxCards > 50 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"max_cards": "must be between 1 and 50"}, r))
			return models.JobConfig{}, false
		}
	}

	dir := filepath.Join(h.storagePath, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Error("failed to create upload dir", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return models.JobConfig{}, false
	}

	path := filepath.Join(dir, uuid.New().String()+strings.ToLower(filepath.Ext(header.Filename)))
	if err := writeFile(path, file); err != nil {
		os.Remove(path)
		h.logger.Error("failed to store upload", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store upload", r))
		return models.JobConfig{}, false
	}

	return models.JobConfig{FilePath: path, FileName: header.Filename, MaxCards: maxCards}, true
}

func writeFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy upload: %w", err)
	}
	return dst.Close()
}

func removeUpload(cfg models.JobConfig) {
	if cfg.FilePath != "" {
		os.Remove(cfg.FilePath)
	}
}
