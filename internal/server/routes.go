package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/rules"
	"github.com/lazypower/nudge/internal/signal"
	"github.com/lazypower/nudge/internal/store"
)

func (s *Server) handleListSurfaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"surfaces": s.Host.Surfaces(),
	})
}

func (s *Server) handleGetSurface(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.Host.Engine(name); !ok {
		writeError(w, http.StatusNotFound, "unknown surface "+name)
		return
	}
	res, ok := s.Host.Last(name)
	if !ok {
		// Not evaluated yet.
		res = engine.Result{Surface: name, Candidates: []rules.Candidate{}}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.Host.Engine(name); !ok {
		writeError(w, http.StatusNotFound, "unknown surface "+name)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max must be an integer")
			return
		}
		limit = n
		if n <= 0 {
			// Display-layer request for nothing: answer empty without
			// falling back to the surface's cap.
			writeJSON(w, http.StatusOK, engine.Result{Surface: name, Candidates: []rules.Candidate{}, EvaluatedAt: s.Clock()})
			return
		}
	}

	res, ok := s.Host.Evaluate(name, limit)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown surface "+name)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	eng, ok := s.Host.Any()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no surfaces configured")
		return
	}
	eng.Dismiss(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": id})
}

func (s *Server) handleAct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		ActionID string `json:"action_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ActionID == "" {
		writeError(w, http.StatusBadRequest, "action_id required")
		return
	}

	eng, ok := s.Host.Any()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no surfaces configured")
		return
	}
	if !eng.Act(id, req.ActionID) {
		writeError(w, http.StatusNotFound, "candidate "+id+" was not recently shown")
		return
	}
	s.Host.Trigger()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": id, "action_id": req.ActionID})
}

func (s *Server) handlePutTasks(w http.ResponseWriter, r *http.Request) {
	var tasks []signal.Task
	if !decode(w, r, &tasks) {
		return
	}
	for i := range tasks {
		if tasks[i].Status == "" {
			tasks[i].Status = signal.StatusTodo
		}
	}
	s.Signals.SetTasks(tasks)
	s.updated(w, "tasks", len(tasks))
}

func (s *Server) handlePutEvents(w http.ResponseWriter, r *http.Request) {
	var events []signal.Event
	if !decode(w, r, &events) {
		return
	}
	s.Signals.SetEvents(events)
	s.updated(w, "events", len(events))
}

func (s *Server) handlePutRoutines(w http.ResponseWriter, r *http.Request) {
	var routines []signal.Routine
	if !decode(w, r, &routines) {
		return
	}
	s.Signals.SetRoutines(routines)
	s.updated(w, "routines", len(routines))
}

func (s *Server) handlePutCondition(w http.ResponseWriter, r *http.Request) {
	var reading signal.Reading
	if !decode(w, r, &reading) {
		return
	}
	s.Signals.SetReading(reading)
	s.updated(w, "condition", 1)
}

func (s *Server) handlePutIntegration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.Signals.SetIntegration(signal.ParseIntegrationState(req.State))
	s.updated(w, "integration", 1)
}

func (s *Server) updated(w http.ResponseWriter, kind string, n int) {
	s.Host.Trigger()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "signal": kind, "count": n})
}

func (s *Server) handleVisit(w http.ResponseWriter, r *http.Request) {
	if s.Visits == nil {
		writeError(w, http.StatusServiceUnavailable, "visit log not configured")
		return
	}
	if err := s.Visits.Record(); err != nil {
		log.Warn().Err(err).Msg("record visit failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	visit, err := s.Visits.Today()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Host.Trigger()
	writeJSON(w, http.StatusCreated, visit)
}

func (s *Server) handleCooldowns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"records":        s.Cooldowns.Records(s.Clock()),
		"dismissed":      s.Cooldowns.DismissedIDs(),
		"pending_writes": s.Cooldowns.Pending(),
	})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	actions, err := s.DB.GetRecentActions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if actions == nil {
		actions = []store.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
