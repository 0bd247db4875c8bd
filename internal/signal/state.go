package signal

import (
	"sync"
	"time"
)

// State is an in-memory collaborator holding the latest signals pushed by the
// host (HTTP API, fixtures). It implements every provider interface.
type State struct {
	mu          sync.RWMutex
	clock       func() time.Time
	tasks       []Task
	events      []Event
	routines    []Routine
	reading     Reading
	integration IntegrationState
	visit       *Visit
}

// NewState returns an empty State. clock defaults to time.Now.
func NewState(clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}
	return &State{clock: clock, integration: IntegrationNone}
}

// SetTasks replaces the task list.
func (s *State) SetTasks(tasks []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]Task(nil), tasks...)
}

// SetEvents replaces the known events.
func (s *State) SetEvents(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]Event(nil), events...)
}

// SetRoutines replaces the routine list.
func (s *State) SetRoutines(routines []Routine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routines = append([]Routine(nil), routines...)
}

// SetReading records the latest energy/condition reading.
func (s *State) SetReading(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = r
}

// SetIntegration records which calendar integrations are connected.
func (s *State) SetIntegration(state IntegrationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integration = ParseIntegrationState(string(state))
}

// SetVisit pins the visit summary. Without it, Today reports a first visit.
func (s *State) SetVisit(v Visit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visit = &v
}

func (s *State) ListTasks() ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Task(nil), s.tasks...), nil
}

// ListToday returns the stored events that start on the clock's current day.
func (s *State) ListToday() ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock()
	var out []Event
	for _, e := range s.events {
		if SameDay(now, e.Start) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *State) IntegrationState() (IntegrationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.integration, nil
}

func (s *State) ListRoutines() ([]Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Routine(nil), s.routines...), nil
}

func (s *State) Current() (Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading, nil
}

func (s *State) Today() (Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.visit == nil {
		return Visit{IsFirstToday: true, VisitsToday: 1}, nil
	}
	return *s.visit, nil
}

var (
	_ TaskProvider      = (*State)(nil)
	_ EventProvider     = (*State)(nil)
	_ RoutineProvider   = (*State)(nil)
	_ ConditionProvider = (*State)(nil)
	_ VisitProvider     = (*State)(nil)
)
