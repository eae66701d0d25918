package embeddings_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/adiprasetyo/biolock/internal/biolock/embeddings"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

func TestFileStore_AddAndReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.cbor")
	s, err := embeddings.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	ctx := context.Background()
	if err := s.Add(ctx, 1, types.Embedding{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, 1, types.Embedding{0.4, 0.5, 0.6}); err != nil {
		t.Fatalf("Add second: %v", err)
	}

	refs, err := s.References(ctx, 1)
	if err != nil {
		t.Fatalf("References: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 reference embeddings, got %d", len(refs))
	}
	if refs[0][0] != 0.1 || refs[1][2] != 0.6 {
		t.Errorf("embedding values not preserved: %v", refs)
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.cbor")
	ctx := context.Background()

	s, err := embeddings.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Add(ctx, 42, types.Embedding{1, 0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reopened, err := embeddings.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	refs, err := reopened.References(ctx, 42)
	if err != nil {
		t.Fatalf("References: %v", err)
	}
	if len(refs) != 1 || refs[0][0] != 1 {
		t.Fatalf("expected persisted embedding after reopen, got %v", refs)
	}
}

func TestFileStore_UnknownIdentityEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.cbor")
	s, err := embeddings.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	refs, err := s.References(context.Background(), 999)
	if err != nil {
		t.Fatalf("References: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected empty reference set, got %d", len(refs))
	}
}

func TestFileStore_ReloadPicksUpExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "embeddings.cbor")
	ctx := context.Background()

	s, err := embeddings.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	// Simulate the enrollment tool writing through its own handle.
	writer, err := embeddings.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile writer: %v", err)
	}
	if err := writer.Add(ctx, 7, types.Embedding{0.5, 0.5}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	refs, _ := s.References(ctx, 7)
	if len(refs) != 0 {
		t.Fatal("stale reader should not see the write before Reload")
	}

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	refs, _ = s.References(ctx, 7)
	if len(refs) != 1 {
		t.Fatalf("expected 1 embedding after reload, got %d", len(refs))
	}
}

func TestFileStore_RejectsEmptyEmbedding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.cbor")
	s, err := embeddings.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Add(context.Background(), 1, nil); err == nil {
		t.Fatal("expected error storing empty embedding")
	}
}
