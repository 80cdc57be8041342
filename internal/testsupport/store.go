package testsupport

import (
	"testing"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/state"
)

// MustOpenStore opens the persistent state store for tests.
func MustOpenStore(t testing.TB, cfg *config.Config) *state.Store {
	t.Helper()

	store, err := state.Open(cfg.Paths.StateFile, logging.NewNop())
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return store
}
