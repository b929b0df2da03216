package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"flashnotes-backend/internal/config"
	"flashnotes-backend/internal/flashcards"
)

// NewGenerator builds the configured question provider wrapped in a circuit
// breaker. It returns a nil Generator for the offline provider. The returned
// close func is never nil.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger, observer BreakerObserver) (flashcards.Generator, func(), error) {
	noop := func() {}

	switch cfg.GenerationProvider {
	case config.ProviderOffline:
		return nil, noop, nil

	case config.ProviderHuggingFace:
		hf := NewHuggingFaceClient(cfg.HuggingFaceURL, cfg.HuggingFaceToken, cfg.GenerationTimeout)
		return NewBreakerGenerator(hf, DefaultBreakerConfig("huggingface"), logger, observer), noop, nil

	case config.ProviderGemini:
		gemini, err := NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.SynthesisConcurrency, logger)
		if err != nil {
			return nil, noop, err
		}
		return NewBreakerGenerator(gemini, DefaultBreakerConfig("gemini"), logger, observer), gemini.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
}
