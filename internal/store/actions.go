package store

import (
	"fmt"
	"time"
)

// maxPayloadSize caps the stored action payload.
const maxPayloadSize = 4 * 1024

// Action records a surface reporting that the user acted on a candidate.
type Action struct {
	ID          int64  `json:"id"`
	CandidateID string `json:"candidate_id"`
	RuleID      string `json:"rule_id"`
	ActionID    string `json:"action_id"`
	Payload     string `json:"payload,omitempty"`
	CreatedAt   int64  `json:"created_at"` // unix millis
}

// AddAction stores an action. Truncates payload to 4KB.
func (db *DB) AddAction(candidateID, ruleID, actionID, payload string) error {
	if len(payload) > maxPayloadSize {
		payload = payload[:maxPayloadSize]
	}

	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO actions (candidate_id, rule_id, action_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, candidateID, ruleID, actionID, payload, now)
	if err != nil {
		return fmt.Errorf("add action: %w", err)
	}
	return nil
}

// GetActions returns all actions recorded for a candidate, oldest first.
func (db *DB) GetActions(candidateID string) ([]Action, error) {
	rows, err := db.Query(`
		SELECT id, candidate_id, rule_id, action_id, payload, created_at
		FROM actions WHERE candidate_id = ? ORDER BY created_at, id
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("get actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// GetRecentActions returns the most recent actions across all candidates.
func (db *DB) GetRecentActions(limit int) ([]Action, error) {
	rows, err := db.Query(`
		SELECT id, candidate_id, rule_id, action_id, payload, created_at
		FROM actions ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanActions(rows rowScanner) ([]Action, error) {
	var out []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.CandidateID, &a.RuleID, &a.ActionID, &a.Payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
