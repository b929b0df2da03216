package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"flashnotes-backend/internal/models"
)

const pgForeignKeyViolation = "23503"

type paymentRepository interface {
	ApplyEvent(ctx context.Context, ev models.PaymentEvent) (bool, error)
}

// BillingService handles payment-confirmation webhooks.
type BillingService struct {
	payments paymentRepository
	secret   string
	logger   *zap.Logger
}

func NewBillingService(payments paymentRepository, secret string, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{payments: payments, secret: secret, logger: logger}
}

// VerifySignature checks a "sha256=<hex>" HMAC of payload.
func (s *BillingService) VerifySignature(payload []byte, signature string) error {
	if s.secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("invalid signature format")
	}

	expectedSig, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return fmt.Errorf("invalid signature hex encoding: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)

	if !hmac.Equal(expectedSig, mac.Sum(nil)) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// HandleWebhook verifies and applies one payment event. Redelivered events
// return applied=false and no error.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (applied bool, err error) {
	if err := s.VerifySignature(payload, signature); err != nil {
		s.logger.Warn("rejected payment webhook", zap.Error(err))
		return false, &UnauthorizedError{Message: "Invalid webhook signature"}
	}

	var ev models.PaymentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false, &ValidationError{Fields: map[string]string{"body": "Invalid JSON payload"}}
	}
	ev.State = strings.ToUpper(strings.TrimSpace(ev.State))
	if err := ValidateStruct(ev); err != nil {
		return false, err
	}

	applied, err = s.payments.ApplyEvent(ctx, ev)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation) {
			return false, &NotFoundError{Message: "Unknown user"}
		}
		return false, err
	}

	s.logger.Info("payment event processed",
		zap.String("invoice_id", ev.InvoiceID),
		zap.String("user_id", ev.UserID.String()),
		zap.String("state", ev.State),
		zap.Bool("applied", applied),
	)
	if applied && ev.State == models.PaymentStateComplete {
		s.logger.Info("user promoted to premium", zap.String("user_id", ev.UserID.String()))
	}

	return applied, nil
}

// SignPayload returns the X-Signature header value for payload.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
