package signal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixture is a YAML snapshot of signals, used by `nudge evaluate` and to seed
// `nudge serve`.
type Fixture struct {
	Now         *time.Time `yaml:"now,omitempty"`
	Integration string     `yaml:"integration,omitempty"`
	Energy      int        `yaml:"energy,omitempty"`
	Condition   int        `yaml:"condition,omitempty"`
	Tasks       []Task     `yaml:"tasks,omitempty"`
	Events      []Event    `yaml:"events,omitempty"`
	Routines    []Routine  `yaml:"routines,omitempty"`
	Visit       *Visit     `yaml:"visit,omitempty"`
}

// LoadFixture reads a Fixture from a YAML file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a Fixture from YAML bytes.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	for i := range f.Tasks {
		if f.Tasks[i].Status == "" {
			f.Tasks[i].Status = StatusTodo
		}
	}
	return &f, nil
}

// Apply loads the fixture's signals into s.
func (f *Fixture) Apply(s *State) {
	s.SetTasks(f.Tasks)
	s.SetEvents(f.Events)
	s.SetRoutines(f.Routines)
	s.SetReading(Reading{Energy: f.Energy, Condition: f.Condition})
	s.SetIntegration(ParseIntegrationState(f.Integration))
	if f.Visit != nil {
		s.SetVisit(*f.Visit)
	}
}
