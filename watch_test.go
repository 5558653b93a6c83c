package llmroute_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmend/llmroute"
	"github.com/opsmend/llmroute/backend/mock"
)

const watchInitialYAML = `
backends:
  - id: model-a
    provider: alpha
    quality: fast
`

const watchUpdatedYAML = `
backends:
  - id: model-a
    provider: alpha
    quality: fast
  - id: model-b
    provider: alpha
    quality: balanced
`

func TestWatchConfig_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchInitialYAML), 0o644))

	cfg, err := llmroute.LoadConfig(path)
	require.NoError(t, err)

	r, err := llmroute.NewRouter(cfg, []llmroute.Backend{mock.New(mock.WithName("alpha"))})
	require.NoError(t, err)
	require.Equal(t, 1, r.Registry().Snapshot().Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.WatchConfig(ctx, path) }()

	time.Sleep(100 * time.Millisecond) // let the watcher attach
	require.NoError(t, os.WriteFile(path, []byte(watchUpdatedYAML), 0o644))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.Registry().Snapshot().Len() == 2 {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	assert.Equal(t, 2, r.Registry().Snapshot().Len())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchConfig_KeepsOldSnapshotOnBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchInitialYAML), 0o644))

	cfg, err := llmroute.LoadConfig(path)
	require.NoError(t, err)

	r, err := llmroute.NewRouter(cfg, []llmroute.Backend{mock.New(mock.WithName("alpha"))})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.WatchConfig(ctx, path) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("backends: []\n"), 0o644))

	// Give the watcher time to (not) apply the broken config.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, r.Registry().Snapshot().Len())

	cancel()
	<-done
}
