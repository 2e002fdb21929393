package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, validBody)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c Config) { changes <- c })
	}()

	// Let the watcher register before the first change lands.
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(validBody+"\n[cache]\nttl = \"90s\"\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, Duration(90*time.Second), cfg.Cache.TTL)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_SkipsInvalidChange(t *testing.T) {
	path := writeConfig(t, validBody)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c Config) { changes <- c })
	}()

	time.Sleep(300 * time.Millisecond)

	// A broken write must not reach onChange; the next good one must.
	require.NoError(t, os.WriteFile(path, []byte(`[transport`), 0o644))
	time.Sleep(600 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("verbose = true\n"+validBody), 0o644))

	select {
	case cfg := <-changes:
		assert.True(t, cfg.Verbose, "first applied change must be the valid one")
	case <-time.After(5 * time.Second):
		t.Fatal("valid change was never applied")
	}
}

func TestWatch_CatchesRenameIntoPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(validBody), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c Config) { changes <- c })
	}()

	time.Sleep(300 * time.Millisecond)

	// Editors save atomically: write a temp file, rename over the target.
	tmp := filepath.Join(dir, "config.toml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(validBody+"\n[cache]\nttl = \"45s\"\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case cfg := <-changes:
		assert.Equal(t, Duration(45*time.Second), cfg.Cache.TTL)
	case <-time.After(5 * time.Second):
		t.Fatal("rename-into-place was not observed")
	}
}
