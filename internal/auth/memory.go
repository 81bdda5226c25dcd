package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskboard.org/internal/ids"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety. Used in
// tests and for local development without a database.
type InMemory struct {
	mu         sync.RWMutex
	identities map[string]*Identity
	byEmail    map[string]string
	tokens     map[string]*RefreshToken // keyed by token value
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		identities: make(map[string]*Identity),
		byEmail:    make(map[string]string),
		tokens:     make(map[string]*RefreshToken),
	}
}

func (s *InMemory) Identities() IdentityStore       { return (*memIdentities)(s) }
func (s *InMemory) RefreshTokens() RefreshTokenStore { return (*memTokens)(s) }

type memIdentities InMemory

func (s *memIdentities) Create(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(id.Email)
	if _, ok := s.byEmail[key]; ok {
		return ErrDuplicateEmail
	}
	if id.ID == "" {
		id.ID = ids.New()
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	cp := *id
	s.identities[id.ID] = &cp
	s.byEmail[key] = id.ID
	return nil
}

func (s *memIdentities) Find(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memIdentities) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.identities[id]
	return &cp, nil
}

func (s *memIdentities) Update(ctx context.Context, id string, upd IdentityUpdate) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Email != nil {
		key := strings.ToLower(*upd.Email)
		if owner, exists := s.byEmail[key]; exists && owner != id {
			return nil, ErrDuplicateEmail
		}
		delete(s.byEmail, strings.ToLower(rec.Email))
		s.byEmail[key] = id
		rec.Email = *upd.Email
	}
	if upd.Name != nil {
		rec.Name = *upd.Name
	}
	if upd.SecretHash != nil {
		rec.SecretHash = *upd.SecretHash
	}
	if upd.Role != nil {
		rec.Role = *upd.Role
	}
	if upd.ClearTeam {
		rec.Team = nil
	} else if upd.Team != nil {
		team := *upd.Team
		rec.Team = &team
	}
	cp := *rec
	return &cp, nil
}

func (s *memIdentities) List(ctx context.Context) ([]*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Identity, 0, len(s.identities))
	for _, rec := range s.identities {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memIdentities) ListByTeam(ctx context.Context, team int, role Role) ([]*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Identity
	for _, rec := range s.identities {
		if rec.Team == nil || *rec.Team != team {
			continue
		}
		if role != "" && rec.Role != role {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memIdentities) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.identities[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, strings.ToLower(rec.Email))
	delete(s.identities, id)
	return nil
}

type memTokens InMemory

func (s *memTokens) Create(ctx context.Context, rec *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := *rec
	s.tokens[rec.Token] = &cp
	return nil
}

func (s *memTokens) FindByValue(ctx context.Context, token string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[token]
	if !ok {
		return nil, ErrTokenNotRecognized
	}
	cp := *rec
	return &cp, nil
}

func (s *memTokens) MarkRevoked(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[token]
	if !ok {
		return ErrTokenNotRecognized
	}
	rec.Revoked = true
	return nil
}

func (s *memTokens) MarkRevokedByOwner(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.tokens {
		if rec.OwnerID == ownerID {
			rec.Revoked = true
		}
	}
	return nil
}

func (s *memTokens) Rotate(ctx context.Context, oldToken string, next *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[oldToken]
	if !ok {
		return ErrTokenNotRecognized
	}
	if rec.Revoked {
		return ErrTokenRevoked
	}
	rec.Revoked = true
	if next.ID == "" {
		next.ID = ids.New()
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}
	cp := *next
	s.tokens[next.Token] = &cp
	return nil
}
