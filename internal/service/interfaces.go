// Package service defines the interfaces shared between dialin components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/dialin/internal/model"
)

// DocumentStore is a raw key/value backend for serialized documents.
// Implementations translate their native failures into the storage error
// taxonomy (permission denied, transient, not found).
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Close() error
}

// Source names the backend that served a load or accepted a save.
type Source string

// Document sources.
const (
	SourceRemote  Source = "remote"
	SourceLocal   Source = "local"
	SourceDefault Source = "default"
)

// StateStore persists one composite document per user.
type StateStore interface {
	Load(ctx context.Context, userKey string) (*model.Document, Source, error)
	Save(ctx context.Context, userKey string, doc *model.Document) (Source, error)
	RemoteAvailable() bool
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
