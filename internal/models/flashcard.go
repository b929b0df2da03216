package models

import (
	"time"

	"github.com/google/uuid"
)

// Flashcard is one question/answer pair. Answer is always the verbatim
// source sentence the question was derived from.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// StoredFlashcard is a Flashcard after it has been written for a user.
type StoredFlashcard struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type GenerateFlashcardsRequest struct {
	Notes    string `json:"notes"`
	MaxCards int    `json:"max_cards" validate:"omitempty,min=1,max=50"`
}

type FlashcardsResponse struct {
	Flashcards []Flashcard `json:"flashcards"`
}

type StoredFlashcardsResponse struct {
	Flashcards []StoredFlashcard `json:"flashcards"`
}

type CreateFlashcardJobRequest struct {
	YouTubeURL string `json:"youtube_url" validate:"required,url"`
	MaxCards   int    `json:"max_cards" validate:"omitempty,min=1,max=50"`
}
