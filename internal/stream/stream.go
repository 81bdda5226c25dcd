// Package stream fans task lifecycle events out to live subscribers
// (SSE clients on the dashboard).
package stream

import (
	"sync"
	"time"
)

// EventType identifies what happened to a task.
type EventType string

const (
	EventCreated   EventType = "task.created"
	EventAssigned  EventType = "task.assigned"
	EventStarted   EventType = "task.started"
	EventCompleted EventType = "task.completed"
	EventUpdated   EventType = "task.updated"
	EventDeleted   EventType = "task.deleted"
)

// TaskEvent describes a task lifecycle change for the event stream. Only
// non-sensitive fields are carried; no tokens, no emails.
type TaskEvent struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title,omitempty"`
	ActorID   string    `json:"actor_id"`
	Team      *int      `json:"team,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs task events to all active subscribers. Slow subscribers
// lose events rather than block publishers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan TaskEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan TaskEvent)}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the client disconnects.
func (s *Stream) Subscribe() (<-chan TaskEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan TaskEvent, 16)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that can keep up.
func (s *Stream) Publish(ev TaskEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active listeners.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
