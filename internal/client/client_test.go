package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

func TestNewRespectsEnv(t *testing.T) {
	t.Setenv("NUDGE_URL", "http://example.test:9999")
	if c := New(""); c.serverURL != "http://example.test:9999" {
		t.Errorf("serverURL = %q", c.serverURL)
	}
	t.Setenv("NUDGE_URL", "")
	if c := New(""); c.serverURL != defaultServerURL {
		t.Errorf("serverURL = %q, want default", c.serverURL)
	}
}

func TestEvaluate(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/surfaces/home/evaluate" || r.URL.Query().Get("max") != "2" {
			http.Error(w, "unexpected "+r.Method+" "+r.URL.String(), http.StatusTeapot)
			return
		}
		w.Write([]byte(`{"surface":"home","candidates":[{"id":"deadline-today-t1","priorityTier":1}],"rejected":3}`))
	})

	res, err := c.Evaluate("home", 2)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Surface != "home" || res.Rejected != 3 || len(res.Candidates) != 1 || res.Candidates[0].Tier != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestActSendsActionID(t *testing.T) {
	var got map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/candidates/focus-peak-t1/act" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if err := c.Act("focus-peak-t1", "start-focus"); err != nil {
		t.Fatalf("Act: %v", err)
	}
	if got["action_id"] != "start-focus" {
		t.Errorf("body = %v", got)
	}
}

func TestErrorStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"candidate x was not recently shown"}`))
	})

	err := c.Dismiss("x")
	if err == nil || !strings.Contains(err.Error(), "status 404") || !strings.Contains(err.Error(), "not recently shown") {
		t.Errorf("err = %v", err)
	}
}

func TestCooldowns(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[{"id":"a","dayKey":"2026-10-14","lastShownAt":"2026-10-14T09:00:00Z","shownCountToday":2}],"dismissed":["b"],"pending_writes":1}`))
	})

	cds, err := c.Cooldowns()
	if err != nil {
		t.Fatalf("Cooldowns: %v", err)
	}
	if len(cds.Records) != 1 || cds.Records[0].ShownCountToday != 2 || cds.PendingWrites != 1 || cds.Dismissed[0] != "b" {
		t.Errorf("cooldowns = %+v", cds)
	}
}

func TestHealthy(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	if !c.Healthy() {
		t.Error("Healthy = false against a live server")
	}
	if New("http://127.0.0.1:1").Healthy() {
		t.Error("Healthy = true against a closed port")
	}
}
