package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lazypower/nudge/internal/rules"
)

// Config holds all nudge configuration.
type Config struct {
	Server     ServerConfig            `mapstructure:"server" yaml:"server"`
	Database   DatabaseConfig          `mapstructure:"database" yaml:"database"`
	Logging    LoggingConfig           `mapstructure:"logging" yaml:"logging"`
	Scheduler  SchedulerConfig         `mapstructure:"scheduler" yaml:"scheduler"`
	Surfaces   []SurfaceConfig         `mapstructure:"surfaces" yaml:"surfaces"`
	Thresholds ThresholdsConfig        `mapstructure:"thresholds" yaml:"thresholds"`
	Rules      map[string]RuleOverride `mapstructure:"rules" yaml:"rules,omitempty"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind" yaml:"bind"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // empty resolves to store.DefaultDBPath()
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

type SchedulerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds" yaml:"interval_seconds"`
}

// SurfaceConfig is one UI surface: a rule subset and a result cap.
// An empty rule list selects every rule.
type SurfaceConfig struct {
	Name       string   `mapstructure:"name" yaml:"name"`
	MaxResults int      `mapstructure:"max_results" yaml:"max_results"`
	Rules      []string `mapstructure:"rules" yaml:"rules,omitempty"`
}

// RuleOverride adjusts a built-in rule. Zero keeps the rule's default.
type RuleOverride struct {
	CooldownMinutes int `mapstructure:"cooldown_minutes" yaml:"cooldown_minutes,omitempty"`
	MaxPerDay       int `mapstructure:"max_per_day" yaml:"max_per_day,omitempty"`
}

// ThresholdsConfig is the file form of rules.Thresholds. Windows are
// "HH:MM-HH:MM", clock times "HH:MM".
type ThresholdsConfig struct {
	MeetingSoonMinutes     int `mapstructure:"meeting_soon_minutes" yaml:"meeting_soon_minutes"`
	MeetingImminentMinutes int `mapstructure:"meeting_imminent_minutes" yaml:"meeting_imminent_minutes"`

	EveningWindow string   `mapstructure:"evening_window" yaml:"evening_window"`
	PeakWindows   []string `mapstructure:"peak_windows" yaml:"peak_windows"`
	DaytimeWindow string   `mapstructure:"daytime_window" yaml:"daytime_window"`
	MorningWindow string   `mapstructure:"morning_window" yaml:"morning_window"`
	WorkdayWindow string   `mapstructure:"workday_window" yaml:"workday_window"`

	FocusEnergyMin int `mapstructure:"focus_energy_min" yaml:"focus_energy_min"`
	LowEnergyMax   int `mapstructure:"low_energy_max" yaml:"low_energy_max"`

	HeavyBusyMinutes        int    `mapstructure:"heavy_busy_minutes" yaml:"heavy_busy_minutes"`
	HeavyEventCount         int    `mapstructure:"heavy_event_count" yaml:"heavy_event_count"`
	FragmentedCount         int    `mapstructure:"fragmented_count" yaml:"fragmented_count"`
	FragmentedMaxGapMinutes int    `mapstructure:"fragmented_max_gap_minutes" yaml:"fragmented_max_gap_minutes"`
	OpenFocusMinGapMinutes  int    `mapstructure:"open_focus_min_gap_minutes" yaml:"open_focus_min_gap_minutes"`
	BackToBackMaxGapMinutes int    `mapstructure:"back_to_back_max_gap_minutes" yaml:"back_to_back_max_gap_minutes"`
	FallbackFocusUntil      string `mapstructure:"fallback_focus_until" yaml:"fallback_focus_until"`
	FallbackBusyUntil       string `mapstructure:"fallback_busy_until" yaml:"fallback_busy_until"`

	QuickReopenSeconds int `mapstructure:"quick_reopen_seconds" yaml:"quick_reopen_seconds"`
	LongGapSeconds     int `mapstructure:"long_gap_seconds" yaml:"long_gap_seconds"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37777,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds: 60,
		},
		Surfaces: []SurfaceConfig{
			{
				Name:       "home",
				MaxResults: 1,
				Rules:      []string{rules.RuleDeadline, rules.RuleMeetingSoon, rules.RuleFocusPeak, rules.RuleRoutineEvening, rules.RuleLowEnergy},
			},
			{
				Name:       "insights",
				MaxResults: 2,
				Rules:      []string{rules.RuleDayType, rules.RuleAvoidOne, rules.RuleFocusPeak},
			},
			{
				Name:       "notifications",
				MaxResults: 5,
				Rules:      []string{rules.RuleDeadline, rules.RuleMeetingSoon, rules.RuleRoutineEvening, rules.RuleLowEnergy, rules.RuleMorningBriefing},
			},
			{
				Name:       "dialog",
				MaxResults: 1,
				Rules:      []string{rules.RuleMoment, rules.RuleAvoidOne, rules.RuleMorningBriefing},
			},
		},
		Thresholds: ThresholdsConfig{
			MeetingSoonMinutes:     30,
			MeetingImminentMinutes: 10,

			EveningWindow: "18:00-22:00",
			PeakWindows:   []string{"09:00-11:00", "14:00-16:00"},
			DaytimeWindow: "09:00-18:00",
			MorningWindow: "06:00-09:30",
			WorkdayWindow: "09:00-18:00",

			FocusEnergyMin: 4,
			LowEnergyMax:   2,

			HeavyBusyMinutes:        300,
			HeavyEventCount:         6,
			FragmentedCount:         3,
			FragmentedMaxGapMinutes: 90,
			OpenFocusMinGapMinutes:  120,
			BackToBackMaxGapMinutes: 10,
			FallbackFocusUntil:      "12:00",
			FallbackBusyUntil:       "18:00",

			QuickReopenSeconds: 300,
			LongGapSeconds:     10800,
		},
	}
}

// DefaultPath returns ~/.nudge/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".nudge", "config.yaml"), nil
}

// Load reads the config file at path over the defaults. An empty path means
// DefaultPath; a missing file means defaults. Any key can be overridden from
// the environment, e.g. NUDGE_SERVER_PORT or NUDGE_THRESHOLDS_LOW_ENERGY_MAX.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	path = expandPath(path)

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	v.SetEnvPrefix("NUDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Database.Path = expandPath(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write saves c as YAML, creating the directory if needed.
func (c *Config) Write(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the parts of the config that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.Scheduler.IntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.interval_seconds must be positive, got %d", c.Scheduler.IntervalSeconds)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q: want console or json", c.Logging.Format)
	}

	seen := make(map[string]bool)
	for _, s := range c.Surfaces {
		if s.Name == "" {
			return fmt.Errorf("surface with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("surface %q defined twice", s.Name)
		}
		seen[s.Name] = true
	}

	if _, err := c.Thresholds.Resolve(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// SchedulerInterval returns the tick interval.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// Surface returns the named surface.
func (c *Config) Surface(name string) (SurfaceConfig, bool) {
	for _, s := range c.Surfaces {
		if s.Name == name {
			return s, true
		}
	}
	return SurfaceConfig{}, false
}

// Resolve parses t into the thresholds the rules run on.
func (t ThresholdsConfig) Resolve() (rules.Thresholds, error) {
	th := rules.Thresholds{
		MeetingSoon:     minutes(t.MeetingSoonMinutes),
		MeetingImminent: minutes(t.MeetingImminentMinutes),

		FocusEnergyMin: t.FocusEnergyMin,
		LowEnergyMax:   t.LowEnergyMax,

		HeavyBusy:        minutes(t.HeavyBusyMinutes),
		HeavyEventCount:  t.HeavyEventCount,
		FragmentedCount:  t.FragmentedCount,
		FragmentedMaxGap: minutes(t.FragmentedMaxGapMinutes),
		OpenFocusMinGap:  minutes(t.OpenFocusMinGapMinutes),
		BackToBackMaxGap: minutes(t.BackToBackMaxGapMinutes),

		QuickReopen: time.Duration(t.QuickReopenSeconds) * time.Second,
		LongGap:     time.Duration(t.LongGapSeconds) * time.Second,
	}
	if th.MeetingImminent > th.MeetingSoon {
		return th, fmt.Errorf("meeting_imminent_minutes %d exceeds meeting_soon_minutes %d", t.MeetingImminentMinutes, t.MeetingSoonMinutes)
	}

	var err error
	windows := []struct {
		name string
		raw  string
		dst  *rules.Window
	}{
		{"evening_window", t.EveningWindow, &th.EveningWindow},
		{"daytime_window", t.DaytimeWindow, &th.DaytimeWindow},
		{"morning_window", t.MorningWindow, &th.MorningWindow},
		{"workday_window", t.WorkdayWindow, &th.WorkdayWindow},
	}
	for _, w := range windows {
		if *w.dst, err = rules.ParseWindow(w.raw); err != nil {
			return th, fmt.Errorf("%s: %w", w.name, err)
		}
	}
	for _, raw := range t.PeakWindows {
		w, err := rules.ParseWindow(raw)
		if err != nil {
			return th, fmt.Errorf("peak_windows: %w", err)
		}
		th.PeakWindows = append(th.PeakWindows, w)
	}

	if th.FallbackFocusUntil, err = rules.ParseClock(t.FallbackFocusUntil); err != nil {
		return th, fmt.Errorf("fallback_focus_until: %w", err)
	}
	if th.FallbackBusyUntil, err = rules.ParseClock(t.FallbackBusyUntil); err != nil {
		return th, fmt.Errorf("fallback_busy_until: %w", err)
	}
	return th, nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
