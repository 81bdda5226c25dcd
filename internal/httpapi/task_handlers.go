package httpapi

import (
	"net/http"
	"strings"

	"taskboard.org/internal/auth"
	"taskboard.org/internal/stream"
	"taskboard.org/internal/task"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to"`
	Team        *int   `json:"team"`
}

type assignTaskRequest struct {
	AssignedTo string `json:"assigned_to"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AssignedTo  *string `json:"assigned_to"`
	Team        *int    `json:"team"`
	Status      *string `json:"status"`
}

func (a *API) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTasks(w, r)
	case http.MethodPost:
		a.createTask(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	tasks, err := a.registry.List(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.registry.Create(r.Context(), actor, task.CreateRequest{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Team:        req.Team,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.publishEvent(stream.EventCreated, actor.ID, t)

	w.Header().Set("Location", "/v1/tasks/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) handleTaskResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	actor, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if id, action, found := strings.Cut(path, "/"); found {
		if id == "" || strings.Contains(action, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.taskAction(w, r, actor, id, action)
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := a.registry.Get(r.Context(), actor, path)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPut:
		a.updateTask(w, r, actor, path)
	case http.MethodDelete:
		t, err := a.registry.Delete(r.Context(), actor, path)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.publishEvent(stream.EventDeleted, actor.ID, t)
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) taskAction(w http.ResponseWriter, r *http.Request, actor *auth.Identity, id, action string) {
	switch action {
	case "assign":
		var req assignTaskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		t, err := a.registry.Assign(r.Context(), actor, id, req.AssignedTo)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.publishEvent(stream.EventAssigned, actor.ID, t)
		writeJSON(w, http.StatusOK, t)
	case "start":
		t, err := a.registry.Start(r.Context(), actor, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.publishEvent(stream.EventStarted, actor.ID, t)
		writeJSON(w, http.StatusOK, t)
	case "stop":
		t, err := a.registry.Stop(r.Context(), actor, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.publishEvent(stream.EventCompleted, actor.ID, t)
		writeJSON(w, http.StatusOK, t)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request, actor *auth.Identity, id string) {
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := task.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Team:        req.Team,
	}
	if req.Status != nil {
		status := task.Status(*req.Status)
		upd.Status = &status
	}
	t, err := a.registry.ApplyUpdate(r.Context(), actor, id, upd)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.publishEvent(stream.EventUpdated, actor.ID, t)
	writeJSON(w, http.StatusOK, t)
}

func (a *API) publishEvent(kind stream.EventType, actorID string, t *task.Task) {
	if a.events == nil || t == nil {
		return
	}
	a.events.Publish(stream.TaskEvent{
		Type:    kind,
		TaskID:  t.ID,
		Title:   t.Title,
		ActorID: actorID,
		Team:    t.Team,
		Status:  string(t.Status),
	})
}
