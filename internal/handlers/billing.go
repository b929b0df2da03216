package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flashnotes-backend/internal/middleware"
	"flashnotes-backend/internal/models"
)

const maxWebhookBody = 64 << 10

type webhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (applied bool, err error)
}

type paymentLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
}

type BillingHandler struct {
	billing  webhookProcessor
	payments paymentLister
	logger   *zap.Logger
}

func NewBillingHandler(billing webhookProcessor, payments paymentLister, logger *zap.Logger) *BillingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandler{billing: billing, payments: payments, logger: logger}
}

// Webhook records a payment-confirmation event. Redelivered events are
// acknowledged without being applied twice.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	applied, err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("X-Signature"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true, "applied": applied})
}

// ListPayments returns the caller's payment history, newest first.
func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to list payments", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An internal server error occurred.", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}
