package testsupport

import (
	"testing"

	"reelflow/internal/config"
	"reelflow/internal/statestore"
)

// MustOpenStore opens the SQLite state store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *statestore.SQLiteStore {
	t.Helper()

	store, err := statestore.OpenSQLite(cfg.StorePath())
	if err != nil {
		t.Fatalf("statestore.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
