package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flashnotes-backend/internal/middleware"
	"flashnotes-backend/internal/models"
)

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type flashcardCounter interface {
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type quotaReporter interface {
	Remaining(ctx context.Context, userID uuid.UUID, tier string) (int, error)
}

type UserHandler struct {
	users  userReader
	cards  flashcardCounter
	quota  quotaReporter
	logger *zap.Logger
}

func NewUserHandler(users userReader, cards flashcardCounter, quota quotaReporter, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, cards: cards, quota: quota, logger: logger}
}

// GetMe reports the stored tier, which can be ahead of the token's claim
// right after a payment.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}

	count, err := h.cards.CountByUser(r.Context(), userID)
	if err != nil {
		h.logger.Warn("failed to count flashcards", zap.Error(err))
	}

	remaining, err := h.quota.Remaining(r.Context(), userID, user.Tier)
	if err != nil {
		h.logger.Warn("failed to read quota", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, models.Profile{
		User:                 user,
		FlashcardCount:       count,
		RemainingGenerations: remaining,
	})
}
