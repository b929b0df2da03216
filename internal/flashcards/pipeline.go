package flashcards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flashnotes-backend/internal/models"
)

const (
	DefaultMaxCards = 10

	storeTimeout = 10 * time.Second
)

// Store persists generated cards per user.
type Store interface {
	StoreAll(ctx context.Context, userID uuid.UUID, cards []models.Flashcard) error
	FetchAll(ctx context.Context, userID uuid.UUID) ([]models.StoredFlashcard, error)
}

type PipelineConfig struct {
	MaxCards    int
	Concurrency int
}

// Pipeline turns raw notes into flashcards and hands them to the Store.
type Pipeline struct {
	synth       *Synthesizer
	store       Store
	maxCards    int
	concurrency int
	logger      *zap.Logger
	recorder    Recorder
}

func NewPipeline(synth *Synthesizer, store Store, cfg PipelineConfig, logger *zap.Logger, recorder Recorder) *Pipeline {
	if cfg.MaxCards <= 0 {
		cfg.MaxCards = DefaultMaxCards
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pipeline{
		synth:       synth,
		store:       store,
		maxCards:    cfg.MaxCards,
		concurrency: cfg.Concurrency,
		logger:      logger,
		recorder:    recorder,
	}
}

// Generate builds at most maxCards flashcards from notes and stores them for
// userID. maxCards <= 0 selects the configured default.
//
// A store failure is logged and counted but does not fail the call: the
// caller still gets the cards. The write outlives ctx's cancellation so a
// client that hangs up mid-generation does not lose the batch.
func (p *Pipeline) Generate(ctx context.Context, userID uuid.UUID, notes string, maxCards int) ([]models.Flashcard, error) {
	cards, err := p.build(ctx, notes, maxCards)
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()
		if err := p.store.StoreAll(storeCtx, userID, cards); err != nil {
			p.recorder.PersistenceFailed()
			p.logger.Error("failed to store flashcards",
				zap.String("user_id", userID.String()),
				zap.Int("cards", len(cards)),
				zap.Error(err),
			)
		}
	}

	return cards, nil
}

// Preview runs the pipeline without persisting anything.
func (p *Pipeline) Preview(ctx context.Context, notes string, maxCards int) ([]models.Flashcard, error) {
	return p.build(ctx, notes, maxCards)
}

// Fetch returns the cards stored for userID.
func (p *Pipeline) Fetch(ctx context.Context, userID uuid.UUID) ([]models.StoredFlashcard, error) {
	if p.store == nil {
		return nil, fmt.Errorf("%w: no store configured", ErrPersistence)
	}
	cards, err := p.store.FetchAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if cards == nil {
		cards = []models.StoredFlashcard{}
	}
	return cards, nil
}

func (p *Pipeline) build(ctx context.Context, notes string, maxCards int) ([]models.Flashcard, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, ErrEmptyInput
	}

	if maxCards <= 0 {
		maxCards = p.maxCards
	}

	sentences := Segment(Normalize(notes))
	if len(sentences) > maxCards {
		sentences = sentences[:maxCards]
	}
	if len(sentences) == 0 {
		return nil, ErrNoViableSentences
	}

	cards := p.synthesizeAll(ctx, sentences)
	if len(cards) == 0 {
		return nil, ErrNoViableSentences
	}

	p.recorder.CardsGenerated(len(cards))
	return cards, nil
}

// synthesizeAll resolves one question per sentence, keeping source order.
// With concurrency > 1 the calls run in parallel; each goroutine only writes
// its own slot.
func (p *Pipeline) synthesizeAll(ctx context.Context, sentences []string) []models.Flashcard {
	cards := make([]models.Flashcard, len(sentences))

	if p.concurrency == 1 || len(sentences) == 1 {
		for i, sentence := range sentences {
			cards[i] = models.Flashcard{Question: p.synth.Synthesize(ctx, sentence), Answer: sentence}
		}
		return cards
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, sentence := range sentences {
		g.Go(func() error {
			cards[i] = models.Flashcard{Question: p.synth.Synthesize(ctx, sentence), Answer: sentence}
			return nil
		})
	}
	g.Wait()

	return cards
}
