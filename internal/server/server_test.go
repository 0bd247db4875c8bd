package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/rules"
	"github.com/lazypower/nudge/internal/scheduler"
	"github.com/lazypower/nudge/internal/signal"
	"github.com/lazypower/nudge/internal/store"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := func() time.Time { return testNow }
	state := signal.NewState(clock)
	cd := cooldown.New(db)
	visits := signal.NewVisitLog(db, clock)
	builder := &signal.Builder{
		Tasks:     state,
		Events:    state,
		Routines:  state,
		Condition: state,
		Visits:    visits,
		Session:   cd,
		Clock:     clock,
	}

	reg := prometheus.NewRegistry()
	metrics := engine.MustNewMetrics(reg)
	hub := engine.NewHub()
	all := rules.Default(rules.DefaultThresholds())

	host := scheduler.New(builder, time.Hour)
	for _, s := range []struct {
		name  string
		max   int
		rules []string
	}{
		{"home", 1, []string{rules.RuleDeadline}},
		{"dialog", 1, []string{rules.RuleMoment}},
	} {
		sub, err := all.Subset(s.rules)
		if err != nil {
			t.Fatalf("Subset: %v", err)
		}
		host.Add(engine.New(builder, sub, cd, engine.Options{Surface: s.name, Hub: hub, Metrics: metrics}), s.max)
	}

	return New(Deps{
		DB:        db,
		Host:      host,
		Signals:   state,
		Visits:    visits,
		Cooldowns: cd,
		Gatherer:  reg,
		Clock:     clock,
	}, "test-version")
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) engine.Result {
	t.Helper()
	var res engine.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v; body: %s", err, w.Body.String())
	}
	return res
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
	if id, _ := body["session_id"].(string); id != srv.Host.SessionID || id == "" {
		t.Errorf("session_id = %v", body["session_id"])
	}
}

func TestListSurfaces(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/surfaces", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Surfaces []scheduler.SurfaceStatus `json:"surfaces"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Surfaces) != 2 || body.Surfaces[0].Name != "home" || body.Surfaces[0].MaxResults != 1 {
		t.Errorf("surfaces = %+v", body.Surfaces)
	}
}

func TestGetSurface(t *testing.T) {
	srv := testServer(t)

	if w := do(t, srv, "GET", "/api/surfaces/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown surface status = %d, want 404", w.Code)
	}

	w := do(t, srv, "GET", "/api/surfaces/home", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if res := decodeResult(t, w); res.Surface != "home" || len(res.Candidates) != 0 {
		t.Errorf("before any pass = %+v", res)
	}
}

func TestSignalsDriveEvaluation(t *testing.T) {
	srv := testServer(t)

	tasks := `[{"id":"t1","title":"Expenses","deadline":"2026-10-14T17:00:00Z"}]`
	if w := do(t, srv, "PUT", "/api/signals/tasks", tasks); w.Code != http.StatusOK {
		t.Fatalf("put tasks = %d; body: %s", w.Code, w.Body.String())
	}

	w := do(t, srv, "POST", "/api/surfaces/home/evaluate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate = %d; body: %s", w.Code, w.Body.String())
	}
	res := decodeResult(t, w)
	if len(res.Candidates) != 1 || res.Candidates[0].ID != "deadline-today-t1" {
		t.Fatalf("first pass = %+v", res.Candidates)
	}

	again := decodeResult(t, do(t, srv, "POST", "/api/surfaces/home/evaluate?max=1", ""))
	if len(again.Candidates) != 0 {
		t.Errorf("second pass = %+v, want empty inside cooldown", again.Candidates)
	}

	last := decodeResult(t, do(t, srv, "GET", "/api/surfaces/home", ""))
	if len(last.Candidates) != 0 {
		t.Errorf("last result = %+v, want the empty second pass", last.Candidates)
	}

	var cds struct {
		Records []cooldown.Record `json:"records"`
	}
	if err := json.Unmarshal(do(t, srv, "GET", "/api/cooldowns", "").Body.Bytes(), &cds); err != nil {
		t.Fatalf("decode cooldowns: %v", err)
	}
	if len(cds.Records) != 1 || cds.Records[0].ID != "deadline-today-t1" || cds.Records[0].ShownCountToday != 1 {
		t.Errorf("cooldowns = %+v", cds.Records)
	}
}

func TestEvaluateMaxParam(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "PUT", "/api/signals/tasks", `[{"id":"t1","title":"Expenses","deadline":"2026-10-14T17:00:00Z"}]`)

	if w := do(t, srv, "POST", "/api/surfaces/home/evaluate?max=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("max=abc status = %d, want 400", w.Code)
	}
	for _, q := range []string{"", "?max=0", "?max=3"} {
		if w := do(t, srv, "POST", "/api/surfaces/nope/evaluate"+q, ""); w.Code != http.StatusNotFound {
			t.Errorf("unknown surface%s status = %d, want 404", q, w.Code)
		}
	}

	res := decodeResult(t, do(t, srv, "POST", "/api/surfaces/home/evaluate?max=0", ""))
	if len(res.Candidates) != 0 {
		t.Errorf("max=0 = %+v, want empty", res.Candidates)
	}
	// max=0 must not have consumed the cooldown.
	res = decodeResult(t, do(t, srv, "POST", "/api/surfaces/home/evaluate", ""))
	if len(res.Candidates) != 1 {
		t.Errorf("after max=0 got %+v, want the deadline", res.Candidates)
	}
}

func TestActAndDismiss(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "PUT", "/api/signals/tasks", `[{"id":"t1","title":"Expenses","deadline":"2026-10-14T17:00:00Z"}]`)
	do(t, srv, "POST", "/api/surfaces/home/evaluate", "")

	if w := do(t, srv, "POST", "/api/candidates/deadline-today-t1/act", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing action_id status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "POST", "/api/candidates/never-shown/act", `{"action_id":"start-task"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown candidate status = %d, want 404", w.Code)
	}
	if w := do(t, srv, "POST", "/api/candidates/deadline-today-t1/act", `{"action_id":"start-task"}`); w.Code != http.StatusOK {
		t.Fatalf("act = %d; body: %s", w.Code, w.Body.String())
	}

	res := decodeResult(t, do(t, srv, "POST", "/api/surfaces/dialog/evaluate?max=3", ""))
	found := false
	for _, c := range res.Candidates {
		if c.ID == "deadline-started-t1" {
			found = true
		}
	}
	if !found {
		t.Errorf("follow-up not offered on the next pass: %+v", res.Candidates)
	}

	if w := do(t, srv, "POST", "/api/candidates/moment-first-visit-2026-10-14/dismiss", ""); w.Code != http.StatusOK {
		t.Fatalf("dismiss = %d", w.Code)
	}
	var cds struct {
		Dismissed []string `json:"dismissed"`
	}
	json.Unmarshal(do(t, srv, "GET", "/api/cooldowns", "").Body.Bytes(), &cds)
	if strings.Join(cds.Dismissed, ",") != "deadline-today-t1,moment-first-visit-2026-10-14" {
		t.Errorf("dismissed = %v", cds.Dismissed)
	}
}

func TestRecentActions(t *testing.T) {
	srv := testServer(t)
	for _, c := range []string{"deadline-today-t1", "focus-peak-t2"} {
		if err := srv.DB.AddAction(c, "rule", "start", ""); err != nil {
			t.Fatalf("AddAction: %v", err)
		}
	}

	var body struct {
		Actions []store.Action `json:"actions"`
	}
	w := do(t, srv, "GET", "/api/actions?limit=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Actions) != 1 || body.Actions[0].CandidateID != "focus-peak-t2" {
		t.Errorf("actions = %+v", body.Actions)
	}

	if w := do(t, srv, "GET", "/api/actions?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestPutSignalsRejectsBadJSON(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"tasks", "events", "routines", "condition", "integration"} {
		if w := do(t, srv, "PUT", "/api/signals/"+path, "{nope"); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, w.Code)
		}
	}
}

func TestPutIntegrationAndCondition(t *testing.T) {
	srv := testServer(t)

	do(t, srv, "PUT", "/api/signals/integration", `{"state":"CALENDAR_PLUS"}`)
	if got, _ := srv.Signals.IntegrationState(); got != signal.IntegrationCalendarPlus {
		t.Errorf("integration = %s", got)
	}
	do(t, srv, "PUT", "/api/signals/integration", `{"state":"SOMETHING_NEW"}`)
	if got, _ := srv.Signals.IntegrationState(); got != signal.IntegrationNone {
		t.Errorf("unknown integration = %s, want NONE", got)
	}

	do(t, srv, "PUT", "/api/signals/condition", `{"energy":2,"condition":3}`)
	if got, _ := srv.Signals.Current(); got.Energy != 2 || got.Condition != 3 {
		t.Errorf("reading = %+v", got)
	}
}

func TestRecordVisit(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/visits", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var v signal.Visit
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.IsFirstToday || v.VisitsToday != 1 {
		t.Errorf("visit = %+v", v)
	}

	do(t, srv, "POST", "/api/visits", "")
	json.Unmarshal(do(t, srv, "POST", "/api/visits", "").Body.Bytes(), &v)
	if v.IsFirstToday || v.VisitsToday != 3 {
		t.Errorf("third visit = %+v", v)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/surfaces/home/evaluate", "")

	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `nudge_engine_evaluations_total{surface="home"} 1`) {
		t.Errorf("metrics body missing evaluation counter:\n%s", w.Body.String())
	}
}
