package task

import (
	"sort"

	"taskboard.org/internal/auth"
)

// Pure authorization decisions over identities and tasks. All role dispatch
// for task operations lives here; nothing in this file performs I/O.

// CanAssign reports whether the actor may assign work to the assignee.
// Admins assign anyone; teamleads assign within their own team; employees
// never assign.
func CanAssign(actor, assignee *auth.Identity) bool {
	if actor == nil || assignee == nil {
		return false
	}
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleTeamlead:
		return actor.Team != nil && assignee.Team != nil && *actor.Team == *assignee.Team
	}
	return false
}

// CanCreate reports whether the actor may create tasks.
func CanCreate(actor *auth.Identity) bool {
	if actor == nil {
		return false
	}
	return actor.Role == auth.RoleTeamlead || actor.Role == auth.RoleAdmin
}

// CanMutate reports whether the actor may edit or delete the task. Admins
// and the creator may; status transitions are governed separately by
// CanTransitionStatus.
func CanMutate(actor *auth.Identity, t *Task) bool {
	if actor == nil || t == nil {
		return false
	}
	return actor.Role == auth.RoleAdmin || actor.ID == t.CreatedBy
}

// CanTransitionStatus reports whether the actor may start or stop the task.
// Only the assignee may; admins and creators are deliberately not exempt.
func CanTransitionStatus(actor *auth.Identity, t *Task) bool {
	if actor == nil || t == nil || t.AssignedTo == "" {
		return false
	}
	return actor.ID == t.AssignedTo
}

// DeriveTeam resolves the team a task belongs to: an explicitly supplied
// team wins, otherwise the assignee's team, otherwise nil.
func DeriveTeam(assignee *auth.Identity, explicitTeam *int) *int {
	if explicitTeam != nil {
		team := *explicitTeam
		return &team
	}
	if assignee != nil && assignee.Team != nil {
		team := *assignee.Team
		return &team
	}
	return nil
}

// Visible filters tasks down to what the actor may see, most recently
// created first. Admins see everything; teamleads see their team's tasks
// plus anything assigned to them; employees see only their own assignments.
func Visible(actor *auth.Identity, tasks []*Task) []*Task {
	if actor == nil {
		return nil
	}
	var out []*Task
	for _, t := range tasks {
		if visibleTo(actor, t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func visibleTo(actor *auth.Identity, t *Task) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleTeamlead:
		if t.AssignedTo == actor.ID {
			return true
		}
		return actor.Team != nil && t.Team != nil && *actor.Team == *t.Team
	default:
		return t.AssignedTo == actor.ID
	}
}
