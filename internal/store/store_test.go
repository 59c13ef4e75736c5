package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fuzzycache/internal/store"
	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

type opener struct {
	name string
	open func(t *testing.T, path string) store.Store
}

func openers() []opener {
	return []opener{
		{
			name: "sqlite",
			open: func(t *testing.T, path string) store.Store {
				t.Helper()

				s, err := store.OpenSQLite(context.Background(), path)
				require.NoError(t, err)

				return s
			},
		},
		{
			name: "snapshot",
			open: func(t *testing.T, path string) store.Store {
				t.Helper()

				s, err := store.OpenSnapshot(fs.NewReal(), path, nil)
				require.NoError(t, err)

				return s
			},
		},
	}
}

func Test_Store_Put_Get_Delete_Round_Trip(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			s := o.open(t, filepath.Join(t.TempDir(), "cache.db"))
			defer func() { require.NoError(t, s.Close()) }()

			_, found, err := s.Get("apple")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, s.Put("apple", []byte(`[1]`)))
			require.NoError(t, s.Put("apple", []byte(`[1,2]`)))

			got, found, err := s.Get("apple")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, `[1,2]`, string(got))

			require.NoError(t, s.Delete("apple"))
			require.NoError(t, s.Delete("apple"), "deleting a missing key is not an error")

			_, found, err = s.Get("apple")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func Test_Store_Keys_Are_Sorted(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			s := o.open(t, filepath.Join(t.TempDir(), "cache.db"))
			defer func() { require.NoError(t, s.Close()) }()

			for _, k := range []string{"pear", "apple", "banana", "Zebra"} {
				require.NoError(t, s.Put(k, []byte(`[]`)))
			}

			keys, err := s.Keys()
			require.NoError(t, err)
			require.Equal(t, []string{"Zebra", "apple", "banana", "pear"}, keys)
		})
	}
}

func Test_Store_Persists_Across_Reopen(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "cache.db")

			s := o.open(t, path)
			require.NoError(t, s.Put("apple", []byte(`["x"]`)))
			require.NoError(t, s.Put("pear", []byte(`["y"]`)))
			require.NoError(t, s.Delete("pear"))
			require.NoError(t, s.Close())

			s = o.open(t, path)
			defer func() { require.NoError(t, s.Close()) }()

			keys, err := s.Keys()
			require.NoError(t, err)
			require.Equal(t, []string{"apple"}, keys)

			got, found, err := s.Get("apple")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, `["x"]`, string(got))
		})
	}
}

func Test_Store_Returns_ErrClosed_After_Close(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			s := o.open(t, filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, s.Close())

			require.ErrorIs(t, s.Close(), store.ErrClosed)
			require.ErrorIs(t, s.Put("k", nil), store.ErrClosed)
			require.ErrorIs(t, s.Delete("k"), store.ErrClosed)

			_, _, err := s.Get("k")
			require.ErrorIs(t, err, store.ErrClosed)

			_, err = s.Keys()
			require.ErrorIs(t, err, store.ErrClosed)
		})
	}
}

func Test_Store_Second_Handle_Sees_Writes_Of_First(t *testing.T) {
	t.Parallel()

	for _, o := range openers() {
		t.Run(o.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "cache.db")

			a := o.open(t, path)
			defer func() { require.NoError(t, a.Close()) }()

			b := o.open(t, path)
			defer func() { require.NoError(t, b.Close()) }()

			require.NoError(t, a.Put("apple", []byte(`[1]`)))

			got, found, err := b.Get("apple")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, `[1]`, string(got))

			require.NoError(t, b.Put("apple", []byte(`[1,2]`)))
			require.NoError(t, b.Put("pear", []byte(`[3]`)))

			keys, err := a.Keys()
			require.NoError(t, err)
			require.Equal(t, []string{"apple", "pear"}, keys)

			got, _, err = a.Get("apple")
			require.NoError(t, err)
			require.Equal(t, `[1,2]`, string(got))
		})
	}
}

func Test_OpenSnapshot_Returns_ErrIncompatible_When_File_Is_Not_A_Snapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not gob"), 0o600))

	_, err := store.OpenSnapshot(fs.NewReal(), path, nil)
	require.ErrorIs(t, err, store.ErrIncompatible)
}

func Test_OpenSQLite_Returns_ErrIncompatible_When_Schema_Is_Newer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := store.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	bumpUserVersion(t, path, 99)

	_, err = store.OpenSQLite(context.Background(), path)
	require.ErrorIs(t, err, store.ErrIncompatible)
}
