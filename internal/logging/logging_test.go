package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lazypower/nudge/internal/config"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := SetupWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf); err != nil {
		t.Fatalf("SetupWriter: %v", err)
	}
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Msg("hidden")
	log.Warn().Str("rule", "deadline").Msg("shown")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("want exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "shown" || entry["rule"] != "deadline" || entry["app"] != "nudge" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetupRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	if err := SetupWriter(config.LoggingConfig{Level: "loud"}, &buf); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetupWriter(config.LoggingConfig{Format: "xml"}, &buf); err == nil {
		t.Error("expected error for unknown format")
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
