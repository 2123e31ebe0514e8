package bootstrap

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/cassiomorais/storesync/internal/infrastructure/commerce"
	"github.com/cassiomorais/storesync/internal/infrastructure/memory"
	"github.com/cassiomorais/storesync/internal/infrastructure/sqlite"
	"github.com/cassiomorais/storesync/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := New(context.Background(), "storesync-test", "test", Options{
		Registerer: prometheus.NewRegistry(),
		LogOutput:  io.Discard,
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestNew_DemoWithSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("STORESYNC_BACKEND_DEMO", "true")
	t.Setenv("STORESYNC_STORAGE_SQLITE_PATH", filepath.Join(dir, "db", "queue.db"))

	app := newTestApp(t)

	assert.IsType(t, &sqlite.Store{}, app.Store)
	assert.IsType(t, &sqlite.IdempotencyRepository{}, app.Idempotency)
	assert.IsType(t, &commerce.MockBackend{}, app.Backend)
	assert.Nil(t, app.Prober)
	assert.Nil(t, app.Lease)
	assert.Nil(t, app.DeadLetters)
	assert.True(t, app.Monitor.Online())
	require.NoError(t, app.Store.Ping(context.Background()))

	require.NoError(t, app.Queue.Start(context.Background()))
	id := app.Queue.Enqueue(context.Background(), testutil.NewTestRestock("p-1", 2))
	assert.NotEmpty(t, id.String())
	app.Queue.Wait()
}

func TestNew_ManualConnectivityWithMemoryStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORESYNC_STORAGE_DRIVER", "memory")
	t.Setenv("STORESYNC_CONNECTIVITY_MODE", "manual")
	t.Setenv("STORESYNC_BACKEND_BASE_URL", "http://127.0.0.1:1")

	app := newTestApp(t)

	assert.IsType(t, &memory.Store{}, app.Store)
	assert.IsType(t, &memory.IdempotencyRepository{}, app.Idempotency)
	assert.IsType(t, &commerce.Client{}, app.Backend)
	assert.Nil(t, app.Prober)
	assert.False(t, app.Monitor.Online())
}

func TestNew_ProbeMode(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORESYNC_STORAGE_DRIVER", "memory")
	t.Setenv("STORESYNC_BACKEND_BASE_URL", "http://127.0.0.1:1")

	app := newTestApp(t)

	assert.NotNil(t, app.Prober)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORESYNC_STORAGE_DRIVER", "leveldb")

	_, err := New(context.Background(), "storesync-test", "test", Options{
		Registerer: prometheus.NewRegistry(),
		LogOutput:  io.Discard,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}
