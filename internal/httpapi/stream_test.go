package httpapi

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"taskboard.org/internal/stream"
)

func TestTaskEventsStream(t *testing.T) {
	api := newTestAPI(t)
	_, leadSession := api.register("Lead", "lead@example.com", "teamlead", intPtr(7))

	resp := api.get("/v1/tasks/events", leadSession.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream: unexpected status %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type: %s", ct)
	}

	events := make(chan stream.TaskEvent, 1)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev stream.TaskEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			events <- ev
			return
		}
	}()

	// Give the subscription a moment to register before publishing.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		created := api.post("/v1/tasks", map[string]any{"title": "Streamed"}, leadSession.AccessToken)
		created.Body.Close()
		if created.StatusCode != http.StatusCreated {
			t.Fatalf("create task: unexpected status %d", created.StatusCode)
		}
		select {
		case ev := <-events:
			if ev.Type != stream.EventCreated {
				t.Fatalf("unexpected event type: %s", ev.Type)
			}
			if ev.TaskID == "" || ev.Title != "Streamed" {
				t.Fatalf("incomplete event: %+v", ev)
			}
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("no event received on the stream")
}

func TestStreamRequiresAuthentication(t *testing.T) {
	api := newTestAPI(t)
	resp := api.get("/v1/tasks/events", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
