package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchtrail/watchtrail/internal/profile"
	"github.com/watchtrail/watchtrail/store"
	"github.com/watchtrail/watchtrail/store/db/sqlite"
)

// NewTestingStore creates a store backed by a throwaway sqlite database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   dir,
		DSN:    filepath.Join(dir, "watchtrail_test.db"),
	}

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)

	initialized, err := driver.IsInitialized(ctx)
	require.NoError(t, err)
	require.True(t, initialized)

	ts := store.New(driver, p)
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts
}
