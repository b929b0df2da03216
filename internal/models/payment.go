package models

import (
	"time"

	"github.com/google/uuid"
)

const PaymentStateComplete = "COMPLETE"

// PaymentEvent is the body of a payment-confirmation webhook.
type PaymentEvent struct {
	InvoiceID string    `json:"invoice_id" validate:"required,max=128"`
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	State     string    `json:"state" validate:"required,oneof=PENDING PROCESSING COMPLETE FAILED"`
	Amount    float64   `json:"amount" validate:"gte=0"`
	Currency  string    `json:"currency" validate:"omitempty,len=3"`
}

type Payment struct {
	InvoiceID string    `json:"invoice_id"`
	UserID    uuid.UUID `json:"user_id"`
	State     string    `json:"state"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
