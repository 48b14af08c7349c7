package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holocons/waypoints/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "travelers.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	storetest.Run(t, store)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
