package flashcards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// BlankToken replaces the hidden word in a fill-in-the-blank question.
	BlankToken = "______"

	promptTemplate = "Generate a question about: %s"

	DefaultGenerationTimeout = 15 * time.Second
)

// Generator is the external text-generation service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Source tells where a question came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// SynthesisResult is the outcome of resolving one sentence into a question.
// Err carries the upstream failure that forced a fallback, if any.
type SynthesisResult struct {
	Text   string
	Source Source
	Err    error
}

// Recorder receives pipeline observations. metrics.Collector implements it.
type Recorder interface {
	SynthesisResolved(source Source)
	CardsGenerated(n int)
	PersistenceFailed()
}

type nopRecorder struct{}

func (nopRecorder) SynthesisResolved(Source) {}
func (nopRecorder) CardsGenerated(int)       {}
func (nopRecorder) PersistenceFailed()       {}

// Synthesizer turns a sentence into a question. It calls the generator once
// and falls back to a local fill-in-the-blank question on any failure.
type Synthesizer struct {
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
	recorder  Recorder
}

// NewSynthesizer builds a Synthesizer. A nil generator means offline mode:
// every question is derived locally.
func NewSynthesizer(generator Generator, timeout time.Duration, logger *zap.Logger, recorder Recorder) *Synthesizer {
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Synthesizer{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
		recorder:  recorder,
	}
}

// Synthesize always returns a question for sentence.
func (s *Synthesizer) Synthesize(ctx context.Context, sentence string) string {
	return s.Resolve(ctx, sentence).Text
}

// Resolve is Synthesize with the result variant exposed.
func (s *Synthesizer) Resolve(ctx context.Context, sentence string) SynthesisResult {
	if s.generator == nil {
		s.recorder.SynthesisResolved(SourceFallback)
		return SynthesisResult{Text: FallbackQuestion(sentence), Source: SourceFallback}
	}

	text, err := s.callGenerator(ctx, Prompt(sentence))
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyGeneration
	}
	if err == nil {
		s.recorder.SynthesisResolved(SourceRemote)
		return SynthesisResult{Text: text, Source: SourceRemote}
	}

	s.logger.Warn("question generation failed, using fallback",
		zap.Error(err),
		zap.Int("sentence_words", len(strings.Fields(sentence))),
	)
	s.recorder.SynthesisResolved(SourceFallback)
	return SynthesisResult{Text: FallbackQuestion(sentence), Source: SourceFallback, Err: err}
}

type generation struct {
	text string
	err  error
}

// callGenerator runs one generator call bounded by the synthesis timeout. The
// call is detached from caller cancellation; a generator that ignores its
// context is abandoned once the timeout fires.
func (s *Synthesizer) callGenerator(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: fmt.Errorf("generator panic: %v", r)}
			}
		}()
		text, err := s.generator.Generate(callCtx, prompt)
		done <- generation{text: text, err: err}
	}()

	select {
	case g := <-done:
		return g.text, g.err
	case <-callCtx.Done():
		return "", fmt.Errorf("generation timed out after %s: %w", s.timeout, callCtx.Err())
	}
}

// Prompt is the text sent to the generator for sentence.
func Prompt(sentence string) string {
	return fmt.Sprintf(promptTemplate, sentence)
}

// FallbackQuestion derives a question without any remote call. Sentences with
// more than three words get their middle word (index n/2) blanked out and a
// trailing question mark; shorter ones become "What is ...?".
func FallbackQuestion(sentence string) string {
	words := strings.Fields(sentence)
	if len(words) > 3 {
		words[len(words)/2] = BlankToken
		return strings.Join(words, " ") + "?"
	}
	return fmt.Sprintf("What is %s?", sentence)
}
