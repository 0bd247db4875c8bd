package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVImplementations(t *testing.T) {
	impls := map[string]KV{
		"sqlite": testDB(t),
		"memory": NewMemKV(),
	}

	for name, kv := range impls {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get("missing"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v; want absent", ok, err)
			}

			if err := kv.Set("engine.cooldown.a", "1"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := kv.Set("engine.cooldown.b", "2"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := kv.Set("engine.visit.last", "3"); err != nil {
				t.Fatalf("Set: %v", err)
			}

			// Last write wins
			if err := kv.Set("engine.cooldown.a", "10"); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			v, ok, err := kv.Get("engine.cooldown.a")
			if err != nil || !ok || v != "10" {
				t.Errorf("Get after overwrite = (%q, %v, %v), want (10, true, nil)", v, ok, err)
			}

			got, err := kv.List("engine.cooldown.")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("List returned %d keys, want 2: %v", len(got), got)
			}
			if got["engine.cooldown.b"] != "2" {
				t.Errorf("List[b] = %q, want 2", got["engine.cooldown.b"])
			}

			if err := kv.Delete("engine.cooldown.b"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := kv.Delete("engine.cooldown.b"); err != nil {
				t.Fatalf("Delete absent: %v", err)
			}
			got, _ = kv.List("engine.cooldown.")
			if len(got) != 1 {
				t.Errorf("List after delete returned %d keys, want 1", len(got))
			}
		})
	}
}

func TestKVListPrefixIsLiteral(t *testing.T) {
	db := testDB(t)

	// LIKE wildcards in keys must not widen the match
	db.Set("a_b.1", "x")
	db.Set("axb.1", "y")

	got, err := db.List("a_b.")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got["a_b.1"] != "x" {
		t.Errorf("List(a_b.) = %v, want only a_b.1", got)
	}
}

func TestMemKVKeysSorted(t *testing.T) {
	kv := NewMemKV()
	kv.Set("b", "1")
	kv.Set("a", "2")

	keys := kv.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys = %v, want [a b]", keys)
	}
}
