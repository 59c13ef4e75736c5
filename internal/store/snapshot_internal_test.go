package store

import (
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

func Test_Snapshot_Reloads_When_Shared_Write_Count_Moves_But_Stamp_Matches(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")

	var writes atomic.Uint64

	a, err := OpenSnapshot(fs.NewReal(), path, &writes)
	require.NoError(t, err)

	b, err := OpenSnapshot(fs.NewReal(), path, &writes)
	require.NoError(t, err)

	require.NoError(t, a.Put("k", []byte("v1")))

	got, ok, err := b.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got)

	// Same size rewrite. Pin b's stamp to the new file so only the write
	// count can reveal the change.
	require.NoError(t, a.Put("k", []byte("v2")))

	b.stamp, err = b.statFile()
	require.NoError(t, err)

	got, ok, err = b.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func Test_Snapshot_Skips_Reload_When_Nothing_Was_Written(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")

	var writes atomic.Uint64

	s, err := OpenSnapshot(fs.NewReal(), path, &writes)
	require.NoError(t, err)

	require.NoError(t, s.Put("k", []byte("v")))
	require.Equal(t, writes.Load(), s.seen)

	// A reload would replace the map; mutate it to detect that.
	s.entries["marker"] = []byte("x")

	_, ok, err := s.Get("marker")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Close())
}
