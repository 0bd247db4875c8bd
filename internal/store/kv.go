package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// KV is the opaque get/set/list-by-prefix persistence the engine writes
// through. Writes are last-write-wins; there is no compare-and-swap.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	List(prefix string) (map[string]string, error)
}

// Get returns the value stored under key. ok is false when the key is absent.
func (db *DB) Get(key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key. A concurrent writer of the same key simply overwrites it.
func (db *DB) Set(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(key string) error {
	if _, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// List returns every key/value pair whose key starts with prefix.
func (db *DB) List(prefix string) (map[string]string, error) {
	rows, err := db.Query(`
		SELECT key, value FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("kv list %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan kv: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// MemKV is an in-process KV, used by tests and one-shot CLI evaluation.
type MemKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemKV returns an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

func (m *MemKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemKV) List(prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

// Keys returns the stored keys in sorted order.
func (m *MemKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	_ KV = (*DB)(nil)
	_ KV = (*MemKV)(nil)
)
