package task

import (
	"testing"
	"time"

	"taskboard.org/internal/auth"
)

func intPtr(n int) *int { return &n }

func ident(id string, role auth.Role, team *int) *auth.Identity {
	return &auth.Identity{ID: id, Role: role, Team: team}
}

func TestCanAssign(t *testing.T) {
	cases := []struct {
		name     string
		actor    *auth.Identity
		assignee *auth.Identity
		want     bool
	}{
		{"admin assigns anyone", ident("a", auth.RoleAdmin, nil), ident("e", auth.RoleEmployee, intPtr(3)), true},
		{"teamlead same team", ident("l", auth.RoleTeamlead, intPtr(7)), ident("e", auth.RoleEmployee, intPtr(7)), true},
		{"teamlead other team", ident("l", auth.RoleTeamlead, intPtr(7)), ident("e", auth.RoleEmployee, intPtr(9)), false},
		{"teamlead without team", ident("l", auth.RoleTeamlead, nil), ident("e", auth.RoleEmployee, nil), false},
		{"teamlead to teamless assignee", ident("l", auth.RoleTeamlead, intPtr(7)), ident("e", auth.RoleEmployee, nil), false},
		{"employee never assigns", ident("e1", auth.RoleEmployee, intPtr(7)), ident("e2", auth.RoleEmployee, intPtr(7)), false},
		{"nil actor", nil, ident("e", auth.RoleEmployee, intPtr(7)), false},
		{"nil assignee", ident("a", auth.RoleAdmin, nil), nil, false},
	}
	for _, tc := range cases {
		if got := CanAssign(tc.actor, tc.assignee); got != tc.want {
			t.Errorf("%s: CanAssign = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCanCreate(t *testing.T) {
	if CanCreate(ident("e", auth.RoleEmployee, nil)) {
		t.Error("employee must not create tasks")
	}
	if !CanCreate(ident("l", auth.RoleTeamlead, intPtr(1))) {
		t.Error("teamlead must create tasks")
	}
	if !CanCreate(ident("a", auth.RoleAdmin, nil)) {
		t.Error("admin must create tasks")
	}
	if CanCreate(nil) {
		t.Error("nil actor must not create tasks")
	}
}

func TestCanTransitionStatusIsAssigneeExclusive(t *testing.T) {
	task := &Task{ID: "t1", CreatedBy: "creator", AssignedTo: "worker"}

	if !CanTransitionStatus(ident("worker", auth.RoleEmployee, intPtr(1)), task) {
		t.Error("assignee must be allowed to transition")
	}
	// Neither role rank nor authorship substitutes for being the assignee.
	if CanTransitionStatus(ident("admin", auth.RoleAdmin, nil), task) {
		t.Error("admin must not transition a task assigned to someone else")
	}
	if CanTransitionStatus(ident("creator", auth.RoleTeamlead, intPtr(1)), task) {
		t.Error("creator must not transition a task assigned to someone else")
	}
	if CanTransitionStatus(ident("worker", auth.RoleEmployee, nil), &Task{ID: "t2"}) {
		t.Error("unassigned task has no one who may transition it")
	}
}

func TestDeriveTeam(t *testing.T) {
	assignee := ident("e", auth.RoleEmployee, intPtr(7))

	if got := DeriveTeam(assignee, intPtr(9)); got == nil || *got != 9 {
		t.Errorf("explicit team must win, got %v", got)
	}
	if got := DeriveTeam(assignee, nil); got == nil || *got != 7 {
		t.Errorf("expected assignee team, got %v", got)
	}
	if got := DeriveTeam(ident("e", auth.RoleEmployee, nil), nil); got != nil {
		t.Errorf("expected nil team, got %v", got)
	}

	// The result must alias neither input.
	derived := DeriveTeam(assignee, nil)
	*derived = 99
	if *assignee.Team != 7 {
		t.Error("DeriveTeam leaked a pointer to the assignee's team")
	}
}

func TestVisibility(t *testing.T) {
	now := time.Now().UTC()
	tasks := []*Task{
		{ID: "t1", Team: intPtr(1), AssignedTo: "e1", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "t2", Team: intPtr(2), AssignedTo: "e2", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "t3", Team: intPtr(1), AssignedTo: "e3", CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "t4", AssignedTo: "lead1", CreatedAt: now},
	}

	admin := ident("root", auth.RoleAdmin, nil)
	if got := Visible(admin, tasks); len(got) != 4 {
		t.Fatalf("admin sees %d tasks, want 4", len(got))
	}

	// Teamlead sees their team's tasks plus their own assignments.
	lead := ident("lead1", auth.RoleTeamlead, intPtr(1))
	got := Visible(lead, tasks)
	if len(got) != 3 {
		t.Fatalf("teamlead sees %d tasks, want 3", len(got))
	}
	// Most recently created first.
	if got[0].ID != "t4" || got[1].ID != "t3" || got[2].ID != "t1" {
		t.Fatalf("unexpected order: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}

	emp := ident("e2", auth.RoleEmployee, intPtr(2))
	got = Visible(emp, tasks)
	if len(got) != 1 || got[0].ID != "t2" {
		t.Fatalf("employee visibility wrong: %v", got)
	}

	if got := Visible(nil, tasks); got != nil {
		t.Fatalf("nil actor sees %v", got)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusOpen, StatusInProgress, StatusCompleted} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("paused").Valid() {
		t.Error("unexpected valid status")
	}
}
