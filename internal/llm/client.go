package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is one multimodal generation request: a text prompt followed by
// zero or more images.
type Request struct {
	Prompt string
	Images []ImagePart
}

// ImagePart is an inline image with its decoded bytes.
type ImagePart struct {
	MimeType string
	Data     []byte
}

// Config holds configuration for the LLM analyzer.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	Timeout     time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}
