// Package embeddings persists reference face embeddings per identity.
// The on-disk format is a single CBOR map of identity id to embedding
// list; enrollment tooling rewrites the file atomically and running
// controllers pick the change up via the file watcher.
package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// Store provides reference embeddings for the match policy and accepts
// new enrollments. Implementations must tolerate identities with zero
// embeddings (the caller distinguishes that case).
type Store interface {
	References(ctx context.Context, identityID int64) ([]types.Embedding, error)
	Add(ctx context.Context, identityID int64, emb types.Embedding) error
}

// FileStore is the CBOR-file-backed Store. All reads are served from an
// in-memory cache; Add rewrites the file atomically (temp file + rename)
// so a concurrent reader never sees a torn write.
type FileStore struct {
	path string

	mu    sync.RWMutex
	cache map[int64][]types.Embedding
}

// OpenFile loads the embedding file at path, creating an empty one if it
// does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, cache: make(map[int64][]types.Embedding)}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir embeddings dir: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path (watched by the Reloader).
func (s *FileStore) Path() string { return s.path }

// Reload re-reads the backing file, replacing the cache wholesale.
func (s *FileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read embeddings file: %w", err)
	}

	fresh := make(map[int64][]types.Embedding)
	if len(data) > 0 {
		if err := cbor.Unmarshal(data, &fresh); err != nil {
			return fmt.Errorf("decode embeddings file: %w", err)
		}
	}

	s.mu.Lock()
	s.cache = fresh
	s.mu.Unlock()
	return nil
}

func (s *FileStore) References(_ context.Context, identityID int64) ([]types.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.cache[identityID]
	out := make([]types.Embedding, len(refs))
	copy(out, refs)
	return out, nil
}

func (s *FileStore) Add(_ context.Context, identityID int64, emb types.Embedding) error {
	if len(emb) == 0 {
		return fmt.Errorf("refusing to store empty embedding for identity %d", identityID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make(types.Embedding, len(emb))
	copy(cp, emb)
	s.cache[identityID] = append(s.cache[identityID], cp)

	return s.flushLocked()
}

// flushLocked writes the cache to disk. Callers must hold mu (or have
// exclusive ownership during construction).
func (s *FileStore) flushLocked() error {
	data, err := cbor.Marshal(s.cache)
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write embeddings tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace embeddings file: %w", err)
	}
	return nil
}

// Static is a fixed in-memory Store for tests and dev wiring.
type Static map[int64][]types.Embedding

func (m Static) References(_ context.Context, identityID int64) ([]types.Embedding, error) {
	return m[identityID], nil
}

func (m Static) Add(_ context.Context, identityID int64, emb types.Embedding) error {
	m[identityID] = append(m[identityID], emb)
	return nil
}
