package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/dialin/internal/common"
	"github.com/Veraticus/dialin/internal/service"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Analyzer turns extraction data into an HTML diagnosis using an LLM. It adds
// caching, rate limiting, and retries around a raw Client.
type Analyzer struct {
	client      Client
	cache       *analysisCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
	timeout     time.Duration
}

// NewAnalyzer creates an Analyzer for the configured provider.
func NewAnalyzer(cfg Config, logger *slog.Logger) (*Analyzer, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewAnalyzerWithClient(client, cfg, logger), nil
}

// NewAnalyzerWithClient wraps an existing client.
func NewAnalyzerWithClient(client Client, cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Analyzer{
		client:      client,
		cache:       newAnalysisCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		timeout:     timeout,
	}
}

// Analyze returns the HTML diagnosis for one extraction. Identical requests
// (same prompt and image bytes) are served from the cache.
func (a *Analyzer) Analyze(ctx context.Context, in AnalysisInput, images []ImagePart) (string, error) {
	prompt := BuildPrompt(in)
	key := cacheKey(prompt, images)

	if html, found := a.cache.get(key); found {
		a.logger.Debug("cache hit for analysis", "method", in.Method, "images", len(images))
		return html, nil
	}

	if err := a.rateLimiter.wait(ctx); err != nil {
		return "", err
	}

	var html string
	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		text, err := a.client.Generate(callCtx, Request{Prompt: prompt, Images: images})
		if err != nil {
			if ctx.Err() != nil {
				return &common.RetryableError{Err: ctx.Err(), Retryable: false}
			}
			return err
		}
		html = CleanHTML(text)
		if html == "" {
			return ErrEmptyResponse
		}
		return nil
	}, a.retryOpts)
	if err != nil {
		return "", fmt.Errorf("analysis failed: %w", err)
	}

	a.cache.set(key, html)
	a.logger.Info("extraction analyzed",
		"method", in.Method,
		"images", len(images),
		"bytes", len(html))
	return html, nil
}

// Close stops background work.
func (a *Analyzer) Close() {
	a.cache.Close()
}

func cacheKey(prompt string, images []ImagePart) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	for _, img := range images {
		h.Write([]byte{0})
		h.Write([]byte(img.MimeType))
		h.Write([]byte{0})
		h.Write(img.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
