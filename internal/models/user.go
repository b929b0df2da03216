package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Tier         string     `json:"tier"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Tier         string `json:"tier"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Profile is what GET /user/me returns. RemainingGenerations is -1 for
// unlimited (premium) accounts.
type Profile struct {
	User                 *User `json:"user"`
	FlashcardCount       int   `json:"flashcard_count"`
	RemainingGenerations int   `json:"remaining_generations"`
}
