package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimit(t *testing.T) {
	query := "SELECT id FROM documents WHERE user_id = ? ORDER BY ctime DESC LIMIT ?,?"
	args := []interface{}{"user-1", 20, 10}

	got, gotArgs := Finalize(query, args)
	require.Equal(t, "SELECT id FROM documents WHERE user_id = $1 ORDER BY ctime DESC LIMIT $2 OFFSET $3", got)
	// gendry yields LIMIT offset,count; Postgres wants count first
	require.Equal(t, []interface{}{"user-1", 10, 20}, gotArgs)
}

func TestFinalizeNoLimit(t *testing.T) {
	query := "UPDATE documents SET title = ? WHERE id = ?"
	args := []interface{}{"new title", int64(1)}

	got, gotArgs := Finalize(query, args)
	require.Equal(t, "UPDATE documents SET title = $1 WHERE id = $2", got)
	require.Equal(t, []interface{}{"new title", int64(1)}, gotArgs)
}

func TestFinalizeCaseInsensitive(t *testing.T) {
	got, _ := Finalize("select 1 limit ? , ?", []interface{}{5, 0})
	require.Equal(t, "select 1 LIMIT $1 OFFSET $2", got)
}
