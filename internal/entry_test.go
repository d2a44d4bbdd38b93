package internal

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCore_WarnsOnceWithoutGeneratorKey(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "notely.db")
	cfg.Generator.APIKey = ""

	var logs bytes.Buffer
	c, err := newCore(context.Background(), newApplication([]Option{
		WithConfig(cfg),
		WithLogOutput(&logs),
	}))
	if err != nil {
		t.Fatalf("newCore: %v", err)
	}
	defer c.db.Close()

	if n := strings.Count(logs.String(), "no API key configured"); n != 1 {
		t.Errorf("generator warning logged %d times, want 1:\n%s", n, logs.String())
	}
	if n := strings.Count(logs.String(), `"level":"WARN"`); n != 1 {
		t.Errorf("got %d warnings, want 1:\n%s", n, logs.String())
	}
}
