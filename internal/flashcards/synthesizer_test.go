package flashcards

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	delay   time.Duration
	block   bool
	panics  bool
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.panics {
		panic("boom")
	}
	if s.block {
		select {}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func (s *stubGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type countingRecorder struct {
	mu        sync.Mutex
	remote    int
	fallback  int
	generated int
	failures  int
}

func (c *countingRecorder) SynthesisResolved(source Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if source == SourceRemote {
		c.remote++
	} else {
		c.fallback++
	}
}

func (c *countingRecorder) CardsGenerated(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generated += n
}

func (c *countingRecorder) PersistenceFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

const longSentence = "The mitochondria is the powerhouse of the cell."

func TestFallbackQuestion(t *testing.T) {
	tests := []struct {
		sentence string
		want     string
	}{
		{"ATP", "What is ATP?"},
		{"Cells divide quickly", "What is Cells divide quickly?"},
		{"One two three four", "One two ______ four?"},
		{"One two three four five", "One two ______ four five?"},
		{longSentence, "The mitochondria is the ______ of the cell.?"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, FallbackQuestion(tc.sentence), tc.sentence)
	}
}

func TestFallbackQuestion_BlanksExactlyMiddleWord(t *testing.T) {
	sentences := []string{
		"Water boils at one hundred degrees Celsius.",
		"Newton described three laws of motion in his Principia.",
		"a b c d",
	}

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		got := strings.Fields(strings.TrimSuffix(FallbackQuestion(sentence), "?"))
		require.Len(t, got, len(words))

		blank := len(words) / 2
		for i := range words {
			if i == blank {
				assert.Equal(t, BlankToken, got[i])
				continue
			}
			assert.Equal(t, words[i], got[i])
		}
	}
}

func TestSynthesizer_RemoteSuccessPassesThrough(t *testing.T) {
	gen := &stubGenerator{text: "What organelle produces ATP?"}
	rec := &countingRecorder{}
	s := NewSynthesizer(gen, time.Second, nil, rec)

	res := s.Resolve(context.Background(), longSentence)

	assert.Equal(t, "What organelle produces ATP?", res.Text)
	assert.Equal(t, SourceRemote, res.Source)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"Generate a question about: " + longSentence}, gen.prompts)
	assert.Equal(t, 1, rec.remote)
}

func TestSynthesizer_FailuresFallBack(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"transport error", &stubGenerator{err: errors.New("connection refused")}},
		{"empty text", &stubGenerator{text: "   "}},
		{"slow generator", &stubGenerator{delay: time.Second, text: "too late"}},
		{"generator ignores context", &stubGenerator{block: true}},
		{"generator panics", &stubGenerator{panics: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &countingRecorder{}
			s := NewSynthesizer(tc.gen, 50*time.Millisecond, nil, rec)

			res := s.Resolve(context.Background(), longSentence)

			assert.Equal(t, FallbackQuestion(longSentence), res.Text)
			assert.Equal(t, SourceFallback, res.Source)
			assert.Error(t, res.Err)
			assert.Equal(t, 1, tc.gen.calls(), "exactly one remote attempt")
			assert.Equal(t, 1, rec.fallback)
		})
	}
}

func TestSynthesizer_CallerCancellationDoesNotAbortCall(t *testing.T) {
	gen := &stubGenerator{delay: 20 * time.Millisecond, text: "Still answered?"}
	s := NewSynthesizer(gen, time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, "Still answered?", s.Synthesize(ctx, longSentence))
}

func TestSynthesizer_OfflineUsesFallback(t *testing.T) {
	s := NewSynthesizer(nil, 0, nil, nil)
	assert.Equal(t, "What is ATP?", s.Synthesize(context.Background(), "ATP"))
}
