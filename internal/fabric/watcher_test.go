package fabric

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftdata/weft/internal/source"
)

func TestWatch_RefreshesOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.db")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	f := New()
	f.AddSource(source.NewMemorySource())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	refreshed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, f, []string{path}, func() {
			select {
			case refreshed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher a moment to register, then touch the file.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case <-refreshed:
	case <-ctx.Done():
		t.Fatal("no refresh observed after file write")
	}

	events := f.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, EventRecatalog, events[len(events)-1].Kind)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatch_MissingPath(t *testing.T) {
	t.Parallel()

	f := New()
	err := Watch(context.Background(), f, []string{filepath.Join(t.TempDir(), "absent.db")}, nil)
	assert.Error(t, err)
}
