package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskboard.org/internal/auth"
	"taskboard.org/internal/stream"
	"taskboard.org/internal/task"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := auth.NewInMemory()
	engine, err := auth.NewEngine("test-access-secret", "test-refresh-secret")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	sessions, err := auth.NewService(store, engine)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	registry, err := task.NewRegistry(task.NewInMemory(), store.Identities())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	api := New(ReadyProbe{}, "test", sessions, registry, stream.New())
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, token string) *http.Response {
	return c.do(http.MethodPost, path, body, token)
}

func (c *apiClient) get(path, token string) *http.Response {
	return c.do(http.MethodGet, path, nil, token)
}

// register creates an account and returns its id and session tokens.
func (c *apiClient) register(name, email, role string, team *int) (string, sessionResponse) {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"name":   name,
		"email":  email,
		"secret": "sekret1",
		"role":   role,
		"team":   team,
	}, "")
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: unexpected status %d", email, resp.StatusCode)
	}
	session := decode[sessionResponse](c.t, resp)
	if session.User == nil || session.AccessToken == "" || session.RefreshToken == "" {
		c.t.Fatalf("incomplete session for %s: %+v", email, session)
	}
	return session.User.ID, session
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func intPtr(n int) *int { return &n }

func TestTaskFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	_, leadSession := api.register("Lead", "lead@example.com", "teamlead", intPtr(7))
	workerID, workerSession := api.register("Worker", "worker@example.com", "employee", intPtr(7))

	// Teamlead creates an unassigned task.
	resp := api.post("/v1/tasks", map[string]any{
		"title":       "Quarterly report",
		"description": "Numbers for Q2",
	}, leadSession.AccessToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create task: unexpected status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc == "" {
		t.Fatal("missing Location header")
	}
	created := decode[map[string]any](t, resp)
	taskID := created["id"].(string)
	if created["status"] != "open" {
		t.Fatalf("new task status: %v", created["status"])
	}

	// Assign it to the worker; team follows the assignee.
	resp = api.post("/v1/tasks/"+taskID+"/assign", map[string]any{
		"assigned_to": workerID,
	}, leadSession.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign: unexpected status %d", resp.StatusCode)
	}
	assigned := decode[map[string]any](t, resp)
	if assigned["team"].(float64) != 7 {
		t.Fatalf("team not derived: %v", assigned["team"])
	}

	// Only the assignee may start it.
	resp = api.post("/v1/tasks/"+taskID+"/start", nil, leadSession.AccessToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("creator start: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/tasks/"+taskID+"/start", nil, workerSession.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: unexpected status %d", resp.StatusCode)
	}
	started := decode[map[string]any](t, resp)
	if started["status"] != "in-progress" || started["started_at"] == nil {
		t.Fatalf("start did not transition: %v", started)
	}

	resp = api.post("/v1/tasks/"+taskID+"/stop", nil, workerSession.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: unexpected status %d", resp.StatusCode)
	}
	stopped := decode[map[string]any](t, resp)
	if stopped["status"] != "completed" || stopped["stopped_at"] == nil {
		t.Fatalf("stop did not transition: %v", stopped)
	}

	// The worker sees their task in the list.
	resp = api.get("/v1/tasks", workerSession.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: unexpected status %d", resp.StatusCode)
	}
	list := decode[[]map[string]any](t, resp)
	if len(list) != 1 || list[0]["id"] != taskID {
		t.Fatalf("unexpected worker task list: %v", list)
	}
}

func TestRefreshAndLogoutOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	_, session := api.register("Alice", "alice@example.com", "employee", nil)

	resp := api.post("/v1/auth/refresh", map[string]any{
		"refresh_token": session.RefreshToken,
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: unexpected status %d", resp.StatusCode)
	}
	pair := decode[auth.TokenPair](t, resp)
	if pair.RefreshToken == "" || pair.RefreshToken == session.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token is dead.
	resp = api.post("/v1/auth/refresh", map[string]any{
		"refresh_token": session.RefreshToken,
	}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/logout", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/refresh", map[string]any{
		"refresh_token": pair.RefreshToken,
	}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginFailuresAreUniform(t *testing.T) {
	api := newTestAPI(t)
	api.register("Alice", "alice@example.com", "employee", nil)

	unknown := api.post("/v1/auth/login", map[string]any{
		"email": "nobody@example.com", "secret": "sekret1",
	}, "")
	wrong := api.post("/v1/auth/login", map[string]any{
		"email": "alice@example.com", "secret": "wrong-secret",
	}, "")
	if unknown.StatusCode != http.StatusUnauthorized || wrong.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknown.StatusCode, wrong.StatusCode)
	}
	unknownBody := decode[map[string]any](t, unknown)
	wrongBody := decode[map[string]any](t, wrong)
	if unknownBody["error"] != wrongBody["error"] {
		t.Fatalf("login errors differ: %v vs %v", unknownBody["error"], wrongBody["error"])
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/v1/tasks", "/v1/users", "/v1/auth/me"} {
		resp := api.get(path, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := api.get("/v1/tasks", "not-a-jwt")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUserManagementAuthorization(t *testing.T) {
	api := newTestAPI(t)

	_, adminSession := api.register("Root", "root@example.com", "admin", nil)
	_, leadSession := api.register("Lead", "lead@example.com", "teamlead", intPtr(7))
	api.register("Worker", "worker@example.com", "employee", intPtr(7))
	_, empSession := api.register("Other", "other@example.com", "employee", intPtr(9))

	// Employees cannot list users.
	resp := api.get("/v1/users", empSession.AccessToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("employee list users: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Teamleads see only their team's employees.
	resp = api.get("/v1/users/team-members", leadSession.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("team members: unexpected status %d", resp.StatusCode)
	}
	members := decode[[]map[string]any](t, resp)
	if len(members) != 1 || members[0]["email"] != "worker@example.com" {
		t.Fatalf("unexpected team members: %v", members)
	}

	// Admin provisions a user and gets a temp secret back.
	resp = api.post("/v1/users", map[string]any{
		"name":  "New Hire",
		"email": "hire@example.com",
		"role":  "employee",
		"team":  7,
	}, adminSession.AccessToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create user: unexpected status %d", resp.StatusCode)
	}
	createdUser := decode[createUserResponse](t, resp)
	if createdUser.TempSecret == "" || createdUser.User == nil {
		t.Fatalf("incomplete create-user response: %+v", createdUser)
	}

	// Teamleads cannot provision users.
	resp = api.post("/v1/users", map[string]any{
		"name":  "Nope",
		"email": "nope@example.com",
		"role":  "employee",
	}, leadSession.AccessToken)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("lead create user: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The provisioned user can log in with the temp secret.
	resp = api.post("/v1/auth/login", map[string]any{
		"email":  "hire@example.com",
		"secret": createdUser.TempSecret,
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("temp secret login: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Admin removes the user again.
	resp = api.do(http.MethodDelete, "/v1/users/"+createdUser.User.ID, nil, adminSession.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete user: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProfileUpdateOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	_, session := api.register("Alice", "alice@example.com", "employee", nil)

	resp := api.do(http.MethodPut, "/v1/auth/profile", map[string]any{
		"name":           "Alice B",
		"current_secret": "sekret1",
		"new_secret":     "stronger-secret",
	}, session.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile update: unexpected status %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["name"] != "Alice B" {
		t.Fatalf("name not updated: %v", updated["name"])
	}

	resp = api.post("/v1/auth/login", map[string]any{
		"email": "alice@example.com", "secret": "stronger-secret",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new secret: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	_, leadSession := api.register("Lead", "lead@example.com", "teamlead", intPtr(7))

	// Empty title.
	resp := api.post("/v1/tasks", map[string]any{"title": "  "}, leadSession.AccessToken)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty title: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown JSON field.
	resp = api.post("/v1/tasks", map[string]any{"title": "x", "bogus": true}, leadSession.AccessToken)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate registration.
	resp = api.post("/v1/auth/register", map[string]any{
		"name": "Lead Again", "email": "lead@example.com", "secret": "sekret1",
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate email: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown assignee.
	resp = api.post("/v1/tasks", map[string]any{
		"title": "x", "assigned_to": "no-such-user",
	}, leadSession.AccessToken)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown assignee: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: unexpected status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = api.get("/readyz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/info", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()
}
