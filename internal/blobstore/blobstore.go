// Package blobstore holds short-lived binary preview content (generated
// images, audio clips) behind opaque handles. Handles must be released by the
// caller once no longer needed; a TTL sweep reclaims anything left behind.
package blobstore

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Blob is one stored payload
type Blob struct {
	Handle      string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Store is an in-memory blob store with TTL-based expiry
type Store struct {
	mu    sync.RWMutex
	blobs map[string]*Blob
	ttl   time.Duration
}

// New creates a store whose blobs live for ttl unless released earlier
func New(ttl time.Duration) *Store {
	return &Store{
		blobs: make(map[string]*Blob),
		ttl:   ttl,
	}
}

// Put stores data and returns its handle
func (s *Store) Put(contentType string, data []byte) string {
	now := time.Now()
	blob := &Blob{
		Handle:      uuid.NewString(),
		ContentType: contentType,
		Data:        data,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	s.mu.Lock()
	s.blobs[blob.Handle] = blob
	s.mu.Unlock()

	return blob.Handle
}

// Get returns the blob for a handle. Expired blobs are treated as missing.
func (s *Store) Get(handle string) (*Blob, error) {
	s.mu.RLock()
	blob, ok := s.blobs[handle]
	s.mu.RUnlock()

	if !ok || time.Now().After(blob.ExpiresAt) {
		return nil, fmt.Errorf("blob %s not found or expired", handle)
	}
	return blob, nil
}

// Release frees a blob immediately. Releasing an unknown handle is a no-op.
func (s *Store) Release(handle string) {
	s.mu.Lock()
	delete(s.blobs, handle)
	s.mu.Unlock()
}

// Sweep removes expired blobs and returns how many were reclaimed
func (s *Store) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for handle, blob := range s.blobs {
		if now.After(blob.ExpiresAt) {
			delete(s.blobs, handle)
			removed++
		}
	}

	if removed > 0 {
		log.Printf("🧹 [BLOBSTORE] Swept %d expired preview blobs", removed)
	}
	return removed
}

// Len returns the number of live blobs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
