package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnConfigChange(t *testing.T) {
	dir := t.TempDir()
	userDir := filepath.Join(dir, "user")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	cfgPath := filepath.Join(userDir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("behavior:\n  verbose: false\n"), 0o644))

	opts := LoadOptions{UserConfigDir: userDir, Environ: []string{}}
	s, err := Load(opts)
	require.NoError(t, err)

	var changes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Watch(ctx, opts, func() { changes.Add(1) }, nil)
	}()

	// Give the watcher a moment to install before the write lands.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(cfgPath, []byte("behavior:\n  verbose: true\n"), 0o644))

	require.Eventually(t, func() bool { return changes.Load() > 0 },
		3*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
