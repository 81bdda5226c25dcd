package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskboard.org/internal/ids"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewInMemory creates an empty in-memory task store.
func NewInMemory() *InMemory {
	return &InMemory{tasks: make(map[string]*Task)}
}

func (s *InMemory) Create(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemory) List(ctx context.Context) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, rec := range s.tasks {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd Update) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.Description != nil {
		rec.Description = *upd.Description
	}
	if upd.AssignedTo != nil {
		rec.AssignedTo = *upd.AssignedTo
	}
	if upd.Team != nil {
		team := *upd.Team
		rec.Team = &team
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.StartedAt != nil {
		ts := *upd.StartedAt
		rec.StartedAt = &ts
	}
	if upd.StoppedAt != nil {
		ts := *upd.StoppedAt
		rec.StoppedAt = &ts
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemory) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}
