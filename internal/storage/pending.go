// Package storage persists pending-result records across restarts, keyed per
// game id the way the web client keys its local storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"casino-round-settlement/internal/models"
)

var ErrNotFound = errors.New("pending result not found")

// KeyPendingResult is "<namespace>_pending_slot_result_<gameId>".
const KeyPendingResult = "%s_pending_slot_result_%s"

func PendingKey(namespace, gameID string) string {
	return fmt.Sprintf(KeyPendingResult, namespace, gameID)
}

type PendingStore interface {
	Save(ctx context.Context, gameID string, rec models.PendingResult) error
	// Load returns ErrNotFound when no record exists.
	Load(ctx context.Context, gameID string) (*models.PendingResult, error)
	Delete(ctx context.Context, gameID string) error
}

func encode(rec models.PendingResult) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pending result: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*models.PendingResult, error) {
	var rec models.PendingResult
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending result: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MemoryStore keeps records for the life of the process only.
type MemoryStore struct {
	namespace string

	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore(namespace string) *MemoryStore {
	return &MemoryStore{
		namespace: namespace,
		data:      make(map[string][]byte),
	}
}

func (s *MemoryStore) Save(_ context.Context, gameID string, rec models.PendingResult) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[PendingKey(s.namespace, gameID)] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, gameID string) (*models.PendingResult, error) {
	s.mu.Lock()
	data, ok := s.data[PendingKey(s.namespace, gameID)]
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decode(data)
}

func (s *MemoryStore) Delete(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, PendingKey(s.namespace, gameID))
	return nil
}
