// Package repository provides Store implementations for session state:
// Postgres (principals table), Redis, and an in-memory reference used by
// tests across the repo.
package repository

import (
	"context"
	"sync"
)

type memoryEntry struct {
	tokenVersion int64
	refreshHash  string
	hasHash      bool
}

// MemoryStore is a mutex-guarded in-memory session store. It is the reference
// implementation of the Store contract and the backing store for unit tests.
// Unknown principals read as version 0 with no active session, matching a
// freshly created principal row.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]*memoryEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) entry(principalID string) *memoryEntry {
	e, ok := s.m[principalID]
	if !ok {
		e = &memoryEntry{}
		s.m[principalID] = e
	}
	return e
}

// ReadTokenVersion returns the principal's current token version.
func (s *MemoryStore) ReadTokenVersion(ctx context.Context, principalID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(principalID).tokenVersion, nil
}

// ReadCurrentRefreshHash returns the stored hash, ok=false when absent.
func (s *MemoryStore) ReadCurrentRefreshHash(ctx context.Context, principalID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(principalID)
	return e.refreshHash, e.hasHash, nil
}

// CASRotate swaps the hash only if it currently equals expectedOldHash.
func (s *MemoryStore) CASRotate(ctx context.Context, principalID, expectedOldHash, newHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(principalID)
	if !e.hasHash || e.refreshHash != expectedOldHash {
		return false, nil
	}
	e.refreshHash = newHash
	return true, nil
}

// InvalidateAll bumps the token version and clears the hash.
func (s *MemoryStore) InvalidateAll(ctx context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(principalID)
	e.tokenVersion++
	e.refreshHash = ""
	e.hasHash = false
	return nil
}

// SetInitialSession unconditionally sets the hash, leaving the version alone.
func (s *MemoryStore) SetInitialSession(ctx context.Context, principalID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(principalID)
	e.refreshHash = hash
	e.hasHash = true
	return nil
}
