package savex

import (
	"path/filepath"
	"testing"
)

// NewTestEngine returns an engine rooted in a temporary directory, with an
// in-memory key-value store and cheap key derivation. Relative File paths
// resolve inside the temporary directory.
func NewTestEngine(t testing.TB, opts ...EngineOption) *Engine {
	t.Helper()

	defaults := DefaultConfig()
	defaults.BaseDir = filepath.Join(t.TempDir(), "data")

	base := []EngineOption{
		WithDefaults(defaults),
		WithKeyValueStore(NewMemoryKeyValueStore()),
		WithKDFParams(64, 1, 1),
	}
	engine, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("create test engine: %v", err)
	}
	return engine
}
