package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/store"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// IdentityStore is an in-memory identity directory for tests and dev runs.
type IdentityStore struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]types.Identity
	byTemplate map[int]int64
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		nextID:     1,
		byID:       make(map[int64]types.Identity),
		byTemplate: make(map[int]int64),
	}
}

func (s *IdentityStore) LookupByTemplate(_ context.Context, templateID int) (types.Identity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byTemplate[templateID]
	if !ok {
		return types.Identity{}, false, nil
	}
	return s.byID[id], true, nil
}

func (s *IdentityStore) GetByID(_ context.Context, id int64) (types.Identity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.byID[id]
	return ident, ok, nil
}

func (s *IdentityStore) List(_ context.Context) ([]types.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Identity, 0, len(s.byID))
	for _, ident := range s.byID {
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *IdentityStore) Create(_ context.Context, n store.NewIdentity) (types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.TemplateID != nil {
		if _, taken := s.byTemplate[*n.TemplateID]; taken {
			return types.Identity{}, store.ErrDuplicateTemplate
		}
	}

	ident := types.Identity{
		ID:               s.nextID,
		Name:             n.Name,
		FingerTemplateID: n.TemplateID,
		AccessLevel:      n.AccessLevel,
		CreatedAt:        time.Now().UTC(),
	}
	s.nextID++
	s.byID[ident.ID] = ident
	if n.TemplateID != nil {
		s.byTemplate[*n.TemplateID] = ident.ID
	}
	return ident, nil
}

func (s *IdentityStore) TouchLastAccess(_ context.Context, id int64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return nil
	}
	u := t.UTC()
	ident.LastAccess = &u
	s.byID[id] = ident
	return nil
}

// MustCreate is a test helper: create an identity or panic.
func (s *IdentityStore) MustCreate(name string, templateID int, level int) types.Identity {
	ident, err := s.Create(context.Background(), store.NewIdentity{
		Name:        name,
		TemplateID:  &templateID,
		AccessLevel: level,
	})
	if err != nil {
		panic(err)
	}
	return ident
}
