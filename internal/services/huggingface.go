package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxGenerationBody = 1 << 20

// ErrUnrecognizedResponse means the generation service answered 2xx with a
// body that carries no usable generated_text.
var ErrUnrecognizedResponse = errors.New("unrecognized generation response")

// UpstreamStatusError is a non-2xx answer from the generation service.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("generation service returned status %d", e.StatusCode)
}

// HuggingFaceClient calls a hosted text2text model on the inference API.
type HuggingFaceClient struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewHuggingFaceClient(url, token string, timeout time.Duration) *HuggingFaceClient {
	return &HuggingFaceClient{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HuggingFaceClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxGenerationBody))
		return "", &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGenerationBody))
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	return DecodeGeneration(body)
}

type responseShape int

const (
	shapeUnrecognized responseShape = iota
	shapeList
	shapeObject
)

type generationOutput struct {
	GeneratedText *string `json:"generated_text"`
	Error         string  `json:"error"`
}

type decodedGeneration struct {
	shape  responseShape
	output generationOutput
}

func classifyGeneration(body []byte) decodedGeneration {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return decodedGeneration{shape: shapeUnrecognized}
	}

	switch trimmed[0] {
	case '[':
		var list []generationOutput
		if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
			return decodedGeneration{shape: shapeUnrecognized}
		}
		return decodedGeneration{shape: shapeList, output: list[0]}
	case '{':
		var obj generationOutput
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return decodedGeneration{shape: shapeUnrecognized}
		}
		return decodedGeneration{shape: shapeObject, output: obj}
	}
	return decodedGeneration{shape: shapeUnrecognized}
}

// DecodeGeneration extracts generated_text from either a list response
// ([{"generated_text": ...}]) or an object response ({"generated_text": ...}).
func DecodeGeneration(body []byte) (string, error) {
	d := classifyGeneration(body)

	switch d.shape {
	case shapeList, shapeObject:
		if d.output.GeneratedText != nil {
			return *d.output.GeneratedText, nil
		}
		if d.output.Error != "" {
			return "", fmt.Errorf("%w: upstream error %q", ErrUnrecognizedResponse, d.output.Error)
		}
		return "", fmt.Errorf("%w: generated_text missing", ErrUnrecognizedResponse)
	default:
		return "", ErrUnrecognizedResponse
	}
}
