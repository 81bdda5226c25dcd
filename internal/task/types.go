package task

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a missing task record.
	ErrNotFound = errors.New("task: not found")

	// ErrForbidden indicates an authorization denial.
	ErrForbidden = errors.New("task: forbidden")

	// ErrInvalidInput indicates a validation failure on caller input.
	ErrInvalidInput = errors.New("task: invalid input")
)

// Status is the lifecycle state of a task. Transitions only move forward:
// open, in-progress, completed.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work. Team is derived from the assignee unless an admin
// sets it explicitly; if AssignedTo is set the two stay consistent.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Team        *int       `json:"team,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
}

// Update carries optional field changes for a task. Nil fields are left
// untouched.
type Update struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Team        *int
	Status      *Status
	StartedAt   *time.Time
	StoppedAt   *time.Time
}
