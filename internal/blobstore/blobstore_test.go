package blobstore

import (
	"bytes"
	"testing"
	"time"
)

func TestPutGet(t *testing.T) {
	store := New(time.Minute)

	data := []byte("fake png bytes")
	handle := store.Put("image/png", data)
	if handle == "" {
		t.Fatal("Expected a non-empty handle")
	}

	blob, err := store.Get(handle)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if blob.ContentType != "image/png" {
		t.Errorf("Expected image/png, got %s", blob.ContentType)
	}
	if !bytes.Equal(blob.Data, data) {
		t.Error("Stored data does not round-trip")
	}
}

func TestGetUnknownHandle(t *testing.T) {
	store := New(time.Minute)
	if _, err := store.Get("nope"); err == nil {
		t.Error("Expected error for unknown handle")
	}
}

func TestRelease(t *testing.T) {
	store := New(time.Minute)

	handle := store.Put("audio/wav", []byte("wav"))
	store.Release(handle)

	if _, err := store.Get(handle); err == nil {
		t.Error("Expected released blob to be gone")
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d blobs", store.Len())
	}

	// Releasing again must not panic
	store.Release(handle)
}

func TestExpiredBlobTreatedAsMissing(t *testing.T) {
	store := New(5 * time.Millisecond)

	handle := store.Put("image/png", []byte("x"))
	time.Sleep(20 * time.Millisecond)

	if _, err := store.Get(handle); err == nil {
		t.Error("Expected expired blob to read as missing")
	}
}

func TestSweepReclaimsOnlyExpired(t *testing.T) {
	store := New(5 * time.Millisecond)

	store.Put("image/png", []byte("old"))
	store.Put("image/png", []byte("old too"))
	time.Sleep(20 * time.Millisecond)

	// Fresh blob stored after the others expired
	longLived := New(time.Minute)
	fresh := longLived.Put("image/png", []byte("fresh"))

	if removed := store.Sweep(); removed != 2 {
		t.Errorf("Expected 2 blobs reclaimed, got %d", removed)
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store after sweep, got %d", store.Len())
	}

	if removed := longLived.Sweep(); removed != 0 {
		t.Errorf("Expected nothing reclaimed from fresh store, got %d", removed)
	}
	if _, err := longLived.Get(fresh); err != nil {
		t.Errorf("Fresh blob must survive the sweep: %v", err)
	}
}

func TestHandlesAreUnique(t *testing.T) {
	store := New(time.Minute)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		handle := store.Put("text/plain", []byte("x"))
		if seen[handle] {
			t.Fatalf("Duplicate handle %s", handle)
		}
		seen[handle] = true
	}
	if store.Len() != 100 {
		t.Errorf("Expected 100 blobs, got %d", store.Len())
	}
}
