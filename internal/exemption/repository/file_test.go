package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.yml"), zap.NewNop())
	items, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exemptions.yml")
	store := NewFileStore(path, zap.NewNop())

	require.NoError(t, store.Save(context.Background(), []exemptiondomain.Exemption{
		{User: "Jane Doe", Reason: "staff"},
	}))

	fresh := NewFileStore(path, zap.NewNop())
	items, err := fresh.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Jane Doe", items[0].User)
	assert.Equal(t, "staff", items[0].Reason)
}

func TestExternalEditIsPickedUpAfterInvalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exemptions.yml")
	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Save(context.Background(), nil))

	require.NoError(t, os.WriteFile(path, []byte("exemptions:\n  - user: Ann Lee\n    reason: PI\n"), 0o644))
	items, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items, "cached until invalidated")

	store.Invalidate()
	items, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ann Lee", items[0].User)
}

func TestInvalidateDuringLoadIsNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exemptions.yml")
	require.NoError(t, os.WriteFile(path, []byte("exemptions: []\n"), 0o644))
	store := NewFileStore(path, zap.NewNop())

	// The file changes after the read but before the result is cached.
	store.afterRead = func() {
		store.afterRead = nil
		require.NoError(t, os.WriteFile(path, []byte("exemptions:\n  - user: Ann Lee\n"), 0o644))
		store.Invalidate()
	}
	items, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ann Lee", items[0].User)
}

func TestWatchInvalidatesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exemptions.yml")
	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Save(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("exemptions:\n  - user: Bo Chen\n"), 0o644))

	assert.Eventually(t, func() bool {
		items, err := store.Load(context.Background())
		return err == nil && len(items) == 1 && items[0].User == "Bo Chen"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exemptions.yml")
	require.NoError(t, os.WriteFile(path, []byte("exemptions: [unclosed"), 0o644))
	_, err := NewFileStore(path, zap.NewNop()).Load(context.Background())
	assert.Error(t, err)
}
