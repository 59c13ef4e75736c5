package store_test

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func bumpUserVersion(t *testing.T, path string, version int) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	_, err = db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	require.NoError(t, err)
}
