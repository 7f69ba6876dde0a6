package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	assert.Equal(t, TypeFile, p.Type())
	assert.True(t, filepath.IsAbs(p.Path()))

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a: 1", string(data))
}

func TestFileProvider_LoadMissing(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	require.Error(t, err)
}

func TestFileProvider_WatchCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tally.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := p.Watch(ctx)
	require.NoError(t, err)

	_, err = p.Watch(ctx)
	require.Error(t, err, "second watch on the same provider")

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a: 2"), 0o644))
	}

	select {
	case _, ok := <-changes:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no change signalled")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileProvider_WatchAfterClose(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "tally.yaml"))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Watch(context.Background())
	require.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider([]byte("a: 1"))
	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a: 1", string(data))

	changes, err := p.Watch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, changes)

	_, err = NewStaticProvider(nil).Load(context.Background())
	require.Error(t, err)
}
