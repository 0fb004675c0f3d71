package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Veraticus/dialin/internal/migration"
	"github.com/Veraticus/dialin/internal/model"
	"github.com/Veraticus/dialin/internal/service"
)

const localKeyPrefix = "espressoSettings/"

// LocalKey is the key a user's document is stored under in the local backend.
func LocalKey(userKey string) string {
	return localKeyPrefix + userKey
}

// Store reads and writes per-user documents, remote first with a local
// fallback. A permission failure disables the remote backend for the rest of
// the Store's lifetime; any other remote failure falls back for that call only.
type Store struct {
	remote         service.DocumentStore
	local          service.DocumentStore
	logger         *slog.Logger
	remoteDisabled atomic.Bool
}

// NewStore builds a Store. remote may be nil, which behaves exactly like a
// remote that rejected the first call with a permission error.
func NewStore(remote, local service.DocumentStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{remote: remote, local: local, logger: logger}
	if remote == nil {
		s.remoteDisabled.Store(true)
	}
	return s
}

// RemoteAvailable reports whether remote calls are still being attempted.
func (s *Store) RemoteAvailable() bool {
	return !s.remoteDisabled.Load()
}

// Load returns the user's document, migrated to the current schema. A user
// with nothing stored anywhere gets a fresh default document.
func (s *Store) Load(ctx context.Context, userKey string) (*model.Document, service.Source, error) {
	if err := validateContext(ctx); err != nil {
		return nil, "", err
	}
	if err := validateString(userKey, "userKey"); err != nil {
		return nil, "", err
	}

	if s.RemoteAvailable() {
		body, err := s.remote.Get(ctx, userKey)
		if err == nil {
			doc := s.decode(userKey, body)
			return &doc, service.SourceRemote, nil
		}
		s.remoteFailed(ctx, "load", userKey, err)
	}

	body, err := s.local.Get(ctx, LocalKey(userKey))
	if errors.Is(err, ErrNotFound) {
		doc := migration.NewDocument()
		return &doc, service.SourceDefault, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load local document: %w", err)
	}
	doc := s.decode(userKey, body)
	return &doc, service.SourceLocal, nil
}

// Save writes the whole document, stamping the current schema version.
// Concurrent saves are last-write-wins.
func (s *Store) Save(ctx context.Context, userKey string, doc *model.Document) (service.Source, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(userKey, "userKey"); err != nil {
		return "", err
	}
	if err := validateDocument(doc); err != nil {
		return "", err
	}

	doc.SchemaVersion = model.CurrentSchemaVersion
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	if s.RemoteAvailable() {
		err := s.remote.Put(ctx, userKey, body)
		if err == nil {
			return service.SourceRemote, nil
		}
		s.remoteFailed(ctx, "save", userKey, err)
	}

	if err := s.local.Put(ctx, LocalKey(userKey), body); err != nil {
		return "", fmt.Errorf("failed to save local document: %w", err)
	}
	return service.SourceLocal, nil
}

// Close closes both backends.
func (s *Store) Close() error {
	var errs []error
	if s.remote != nil {
		errs = append(errs, s.remote.Close())
	}
	errs = append(errs, s.local.Close())
	return errors.Join(errs...)
}

func (s *Store) decode(userKey string, body []byte) model.Document {
	if !json.Valid(body) {
		s.logger.Debug("stored document is not valid JSON, using defaults", "user", userKey, "bytes", len(body))
	}
	return migration.MigrateDocument(body)
}

func (s *Store) remoteFailed(ctx context.Context, op, userKey string, err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		if s.remoteDisabled.CompareAndSwap(false, true) {
			s.logger.WarnContext(ctx, "Remote store denied access, using local storage for this session",
				"op", op, "user", userKey, "error", err)
		}
	case errors.Is(err, ErrNotFound):
		s.logger.DebugContext(ctx, "No remote document, trying local", "op", op, "user", userKey)
	default:
		s.logger.WarnContext(ctx, "Remote store failed, falling back to local",
			"op", op, "user", userKey, "error", err)
	}
}
