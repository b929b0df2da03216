package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiGenerator is the alternative question provider. It answers the same
// prompts as the Hugging Face model.
type GeminiGenerator struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	logger   *zap.Logger
	rateChan chan struct{} // Token bucket
}

func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, concurrentReqs int, logger *zap.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(64)

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &GeminiGenerator{
		client:   client,
		model:    model,
		logger:   logger,
		rateChan: rateChan,
	}, nil
}

func (g *GeminiGenerator) Close() {
	g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *GeminiGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			g.logger.Debug("gemini candidate did not stop cleanly",
				zap.Int("candidate", i),
				zap.String("finish_reason", cand.FinishReason.String()),
			)
		}
	}

	return strings.TrimSpace(extractText(resp)), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
