package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Mike-mible/cjic/cache"
	"github.com/Mike-mible/cjic/logging"
)

type DraftKind string

const (
	DraftSiteLog      DraftKind = "site-log"
	DraftSafetyReport DraftKind = "safety-report"
)

func (k DraftKind) Valid() bool {
	return k == DraftSiteLog || k == DraftSafetyReport
}

const maxDraftBytes = 64 << 10

// DraftBackend keeps raw draft bodies under a key until they expire.
type DraftBackend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// DraftService holds unsent form input so a user can resume it later. A
// draft is never a record: it is dropped when the real record is created.
type DraftService struct {
	backend DraftBackend
	log     logging.Logger
}

func NewDraftService(backend DraftBackend, log logging.Logger) *DraftService {
	if log == nil {
		log = logging.Discard()
	}
	return &DraftService{backend: backend, log: log}
}

func draftKey(userID string, kind DraftKind) string {
	return "draft:" + userID + ":" + string(kind)
}

func (s *DraftService) Save(ctx context.Context, userID string, kind DraftKind, body json.RawMessage) error {
	if !kind.Valid() {
		return invalid("unknown draft kind %q", kind)
	}
	if len(body) > maxDraftBytes {
		return invalid("draft is too large")
	}
	if !json.Valid(body) {
		return invalid("draft must be valid JSON")
	}
	if err := s.backend.Put(ctx, draftKey(userID, kind), body); err != nil {
		return storeError(err)
	}
	return nil
}

// Load returns the saved draft, or ErrNotFound when there is none.
func (s *DraftService) Load(ctx context.Context, userID string, kind DraftKind) (json.RawMessage, error) {
	if !kind.Valid() {
		return nil, invalid("unknown draft kind %q", kind)
	}
	data, err := s.backend.Get(ctx, draftKey(userID, kind))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}
	return json.RawMessage(data), nil
}

func (s *DraftService) Clear(ctx context.Context, userID string, kind DraftKind) error {
	if !kind.Valid() {
		return invalid("unknown draft kind %q", kind)
	}
	if err := s.backend.Delete(ctx, draftKey(userID, kind)); err != nil {
		return storeError(err)
	}
	return nil
}

// discard clears a draft after its record was created. Failure only leaves
// a stale draft behind, so it is logged.
func (s *DraftService) discard(ctx context.Context, userID string, kind DraftKind) {
	if s == nil {
		return
	}
	if err := s.Clear(ctx, userID, kind); err != nil {
		s.log.Warn(ctx, "failed to clear draft", "user_id", userID, "kind", kind, "error", err)
	}
}
