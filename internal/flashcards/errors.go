package flashcards

import "errors"

var (
	// ErrEmptyInput is returned when the notes are missing or blank.
	ErrEmptyInput = errors.New("no notes provided")

	// ErrNoViableSentences is returned when segmentation leaves nothing to turn into a card.
	ErrNoViableSentences = errors.New("could not generate flashcards from the provided text")

	// ErrPersistence wraps store failures.
	ErrPersistence = errors.New("flashcard persistence failed")

	// ErrEmptyGeneration means the generator answered without usable text.
	ErrEmptyGeneration = errors.New("generator returned empty text")
)

// ErrorKind classifies a pipeline failure for callers that need to map it to
// a transport status.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInput
	KindNoViableSentences
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNoViableSentences:
		return "no_viable_sentences"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// KindOf reports which ErrorKind err belongs to.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return KindInput
	case errors.Is(err, ErrNoViableSentences):
		return KindNoViableSentences
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindInternal
	}
}
