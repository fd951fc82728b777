package statestore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reelflow/internal/statestore"
)

func openTestStore(t *testing.T) *statestore.SQLiteStore {
	t.Helper()
	store, err := statestore.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteSetGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "fsm:run-1", []byte(`{"state":"Init"}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := store.Get(ctx, "fsm:run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != `{"state":"Init"}` {
		t.Fatalf("Get = %q", value)
	}
}

func TestSQLiteSetOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	value, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != "v2" {
		t.Fatalf("Get after overwrite = %q", value)
	}
}

func TestSQLiteGetMissingKey(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, statestore.ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestSQLiteLazyExpiry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "short", []byte("soon gone"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := store.Get(ctx, "short"); !errors.Is(err, statestore.ErrNotFound) {
		t.Fatalf("Get expired = %v, want ErrNotFound", err)
	}
}

func TestSQLiteKeysFiltersPrefixAndExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "fsm:run-a", []byte("a"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "fsm:run-b", []byte("b"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "fsm:run-c", []byte("c"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "misc:run-d", []byte("d"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	keys, err := store.Keys(ctx, "fsm:")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "fsm:run-a" || keys[1] != "fsm:run-b" {
		t.Fatalf("Keys = %v", keys)
	}
}

func TestSQLiteDeleteMissingKeyIsNotAnError(t *testing.T) {
	store := openTestStore(t)
	if err := store.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestSQLiteSweepExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "live", []byte("stays"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, key := range []string{"dead-1", "dead-2"} {
		if err := store.Set(ctx, key, []byte("goes"), 10*time.Millisecond); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	removed, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, err := store.Get(ctx, "live"); err != nil {
		t.Fatalf("Get live after sweep: %v", err)
	}
}

func TestSQLitePath(t *testing.T) {
	dir := t.TempDir()
	store, err := statestore.OpenSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()
	if store.Path() != filepath.Join(dir, "state.db") {
		t.Fatalf("Path = %q", store.Path())
	}
}
