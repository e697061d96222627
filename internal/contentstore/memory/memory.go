// Package memory is an in-process content store for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"credledger/internal/contentstore"
)

// Store keeps canonicalized payloads keyed by their CIDv1 (raw, sha2-256).
type Store struct {
	mu    sync.RWMutex
	blobs map[contentstore.Address][]byte
}

func New() *Store {
	return &Store{blobs: make(map[contentstore.Address][]byte)}
}

func (s *Store) Put(ctx context.Context, payload json.RawMessage) (contentstore.Address, error) {
	if err := ctx.Err(); err != nil {
		return "", &contentstore.BackendError{Kind: contentstore.ErrStoreUnavailable, Backend: "memory", Op: "put", Underlying: err}
	}
	canonical, err := contentstore.Canonicalize(payload)
	if err != nil {
		return "", err
	}
	addr, err := contentstore.AddressOf(canonical)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[addr]; !ok {
		s.blobs[addr] = canonical
	}
	return addr, nil
}

func (s *Store) Get(ctx context.Context, addr contentstore.Address) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &contentstore.BackendError{Kind: contentstore.ErrStoreUnavailable, Backend: "memory", Op: "get", Underlying: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[addr]
	if !ok {
		return nil, contentstore.ErrNotFound
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// Len reports the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var _ contentstore.Store = (*Store)(nil)
