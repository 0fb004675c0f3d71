package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dialin/internal/common"
)

// scriptedClient returns queued responses in order, repeating the last one.
type scriptedClient struct {
	responses []scriptedResponse
	requests  []Request
	mu        sync.Mutex
}

type scriptedResponse struct {
	err  error
	text string
}

func (c *scriptedClient) Generate(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := len(c.requests) - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	r := c.responses[i]
	return r.text, r.err
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func testAnalyzer(client Client) *Analyzer {
	a := NewAnalyzerWithClient(client, Config{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		RateLimit:  600,
	}, nil)
	a.retryOpts.MaxDelay = 5 * time.Millisecond
	return a
}

func TestAnalyze_CleansAndCaches(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{text: "```html\n<h3>Grind 1 click finer</h3>\n```"}}}
	a := testAnalyzer(client)
	defer a.Close()

	images := []ImagePart{{MimeType: "image/jpeg", Data: []byte("puck")}}
	html, err := a.Analyze(context.Background(), espressoInput(), images)
	require.NoError(t, err)
	assert.Equal(t, "<h3>Grind 1 click finer</h3>", html)

	again, err := a.Analyze(context.Background(), espressoInput(), images)
	require.NoError(t, err)
	assert.Equal(t, html, again)
	assert.Equal(t, 1, client.calls(), "second call served from cache")

	require.Len(t, client.requests[0].Images, 1)
	assert.Contains(t, client.requests[0].Prompt, "Gaggia Classic")
}

func TestAnalyze_DifferentImagesMiss(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{text: "<p>a</p>"}}}
	a := testAnalyzer(client)
	defer a.Close()

	_, err := a.Analyze(context.Background(), espressoInput(), []ImagePart{{MimeType: "image/png", Data: []byte("1")}})
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), espressoInput(), []ImagePart{{MimeType: "image/png", Data: []byte("2")}})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls())
}

func TestAnalyze_RetriesTransientFailures(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: errors.New("connection reset")},
		{text: ""},
		{text: "<p>ok</p>"},
	}}
	a := testAnalyzer(client)
	defer a.Close()

	html, err := a.Analyze(context.Background(), espressoInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", html)
	assert.Equal(t, 3, client.calls())
}

func TestAnalyze_EmptyResponseExhaustsRetries(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{text: "```html```"}}}
	a := testAnalyzer(client)
	defer a.Close()

	_, err := a.Analyze(context.Background(), espressoInput(), nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Equal(t, 3, client.calls())
}

func TestAnalyze_PermanentErrorStopsImmediately(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: &common.RetryableError{Err: errors.New("status 400"), Retryable: false}},
	}}
	a := testAnalyzer(client)
	defer a.Close()

	_, err := a.Analyze(context.Background(), espressoInput(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, client.calls())
}

func TestAnalyze_Canceled(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{text: "<p>late</p>"}}}
	a := testAnalyzer(client)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, espressoInput(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, client.calls(), 1)
}

func TestAnalyze_CallTimeoutIsDeadlineExceeded(t *testing.T) {
	blocking := clientFunc(func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	a := NewAnalyzerWithClient(blocking, Config{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Timeout:    20 * time.Millisecond,
	}, nil)
	defer a.Close()

	_, err := a.Analyze(context.Background(), espressoInput(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type clientFunc func(ctx context.Context, req Request) (string, error)

func (f clientFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("p", []ImagePart{{MimeType: "image/png", Data: []byte("x")}})
	b := cacheKey("p", []ImagePart{{MimeType: "image/jpeg", Data: []byte("x")}})
	c := cacheKey("p", nil)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, c, cacheKey("p", nil))
}
