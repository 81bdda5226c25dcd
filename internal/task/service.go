package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard.org/internal/auth"
)

// Registry owns task records and applies the authorization decisions from
// authorize.go on every operation. Assignee lookups go through the identity
// store; everything else is task state.
type Registry struct {
	tasks      Store
	identities auth.IdentityStore
	now        func() time.Time
}

// RegistryOption configures Registry behavior.
type RegistryOption func(*Registry)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry constructs a Registry.
func NewRegistry(tasks Store, identities auth.IdentityStore, opts ...RegistryOption) (*Registry, error) {
	if tasks == nil {
		return nil, errors.New("task store is required")
	}
	if identities == nil {
		return nil, errors.New("identity store is required")
	}
	r := &Registry{tasks: tasks, identities: identities, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CreateRequest carries the fields for a new task.
type CreateRequest struct {
	Title       string
	Description string
	AssignedTo  string
	Team        *int
}

// Create registers a new task. Only teamleads and admins may create; an
// initial assignee must pass the assignment rules. An explicit team is
// honored as-is when the task is unassigned (accepted input, not validated
// against a team registry); once an assignee is involved only admins may
// override the derived team.
func (r *Registry) Create(ctx context.Context, actor *auth.Identity, req CreateRequest) (*Task, error) {
	if !CanCreate(actor) {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	team := req.Team
	if req.AssignedTo != "" {
		assignee, err := r.findAssignee(ctx, req.AssignedTo)
		if err != nil {
			return nil, err
		}
		if !CanAssign(actor, assignee) {
			return nil, ErrForbidden
		}
		override := req.Team
		if actor.Role != auth.RoleAdmin {
			override = nil
		}
		team = DeriveTeam(assignee, override)
	}

	t := &Task{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   actor.ID,
		AssignedTo:  req.AssignedTo,
		Team:        team,
		Status:      StatusOpen,
	}
	if err := r.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the tasks visible to the actor, most recently created first.
func (r *Registry) List(ctx context.Context, actor *auth.Identity) ([]*Task, error) {
	all, err := r.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	return Visible(actor, all), nil
}

// Get returns a single task if the actor may see it.
func (r *Registry) Get(ctx context.Context, actor *auth.Identity, id string) (*Task, error) {
	t, err := r.tasks.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(actor, t) {
		return nil, ErrForbidden
	}
	return t, nil
}

// Assign sets the task's assignee and re-derives its team from them.
func (r *Registry) Assign(ctx context.Context, actor *auth.Identity, taskID, assigneeID string) (*Task, error) {
	if assigneeID == "" {
		return nil, fmt.Errorf("%w: assignee is required", ErrInvalidInput)
	}
	if _, err := r.tasks.Find(ctx, taskID); err != nil {
		return nil, err
	}
	assignee, err := r.findAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	if !CanAssign(actor, assignee) {
		return nil, ErrForbidden
	}
	team := DeriveTeam(assignee, nil)
	upd := Update{AssignedTo: &assigneeID}
	if team != nil {
		upd.Team = team
	}
	return r.tasks.Update(ctx, taskID, upd)
}

// Start moves an open task to in-progress and records the start timestamp.
// Assignee-exclusive; admins and creators are not exempt.
func (r *Registry) Start(ctx context.Context, actor *auth.Identity, taskID string) (*Task, error) {
	return r.transition(ctx, actor, taskID, StatusOpen, StatusInProgress)
}

// Stop moves an in-progress task to completed and records the stop
// timestamp. Assignee-exclusive.
func (r *Registry) Stop(ctx context.Context, actor *auth.Identity, taskID string) (*Task, error) {
	return r.transition(ctx, actor, taskID, StatusInProgress, StatusCompleted)
}

func (r *Registry) transition(ctx context.Context, actor *auth.Identity, taskID string, from, to Status) (*Task, error) {
	t, err := r.tasks.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionStatus(actor, t) {
		return nil, ErrForbidden
	}
	if t.Status != from {
		return nil, ErrForbidden
	}
	ts := r.now().UTC()
	upd := Update{Status: &to}
	switch to {
	case StatusInProgress:
		upd.StartedAt = &ts
	case StatusCompleted:
		upd.StoppedAt = &ts
	}
	return r.tasks.Update(ctx, taskID, upd)
}

// UpdateRequest carries an edit to an existing task.
type UpdateRequest struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Team        *int
	Status      *Status
}

// ApplyUpdate edits a task. Only the creator or an admin may edit. A status
// change through this path is still a transition: it must move one step
// forward and only the assignee may request it.
func (r *Registry) ApplyUpdate(ctx context.Context, actor *auth.Identity, taskID string, req UpdateRequest) (*Task, error) {
	t, err := r.tasks.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(actor, t) {
		return nil, ErrForbidden
	}

	upd := Update{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		upd.Title = &title
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		upd.Description = &desc
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		assignee, err := r.findAssignee(ctx, *req.AssignedTo)
		if err != nil {
			return nil, err
		}
		if !CanAssign(actor, assignee) {
			return nil, ErrForbidden
		}
		upd.AssignedTo = req.AssignedTo
		override := req.Team
		if actor.Role != auth.RoleAdmin {
			override = nil
		}
		if team := DeriveTeam(assignee, override); team != nil {
			upd.Team = team
		}
	} else if req.Team != nil {
		// An explicit team on an assigned task follows the assignment rule:
		// only admins may override the team derived from the assignee.
		if actor.Role == auth.RoleAdmin || t.AssignedTo == "" {
			upd.Team = req.Team
		}
	}
	if req.Status != nil && *req.Status != t.Status {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: invalid status %s", ErrInvalidInput, *req.Status)
		}
		if !CanTransitionStatus(actor, t) {
			return nil, ErrForbidden
		}
		if !forwardStep(t.Status, *req.Status) {
			return nil, ErrForbidden
		}
		ts := r.now().UTC()
		upd.Status = req.Status
		switch *req.Status {
		case StatusInProgress:
			upd.StartedAt = &ts
		case StatusCompleted:
			upd.StoppedAt = &ts
		}
	}
	return r.tasks.Update(ctx, taskID, upd)
}

// Delete removes a task and returns its final state. Creator or admin only;
// visibility does not apply, a creator may always remove their own task.
func (r *Registry) Delete(ctx context.Context, actor *auth.Identity, taskID string) (*Task, error) {
	t, err := r.tasks.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(actor, t) {
		return nil, ErrForbidden
	}
	if err := r.tasks.Delete(ctx, taskID); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) findAssignee(ctx context.Context, id string) (*auth.Identity, error) {
	assignee, err := r.identities.Find(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, fmt.Errorf("%w: assignee %s", ErrNotFound, id)
		}
		return nil, err
	}
	return assignee, nil
}

func forwardStep(from, to Status) bool {
	switch {
	case from == StatusOpen && to == StatusInProgress:
		return true
	case from == StatusInProgress && to == StatusCompleted:
		return true
	}
	return false
}
