package repo_test

import (
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yikoni/docbase/internal/config"
	"github.com/yikoni/docbase/internal/db"
)

// openTestDB connects to the database named by TEST_DB_* env vars; tests
// that need Postgres are skipped when TEST_DB_HOST is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set; skipping database tests")
	}
	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     envInt("TEST_DB_PORT", 5432),
		User:     envStr("TEST_DB_USER", "postgres"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DBName:   envStr("TEST_DB_NAME", "docbase_test"),
		SSLMode:  "disable",
	}
	conn, err := db.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))

	_, err = conn.Exec(`TRUNCATE documents, document_chunks, collections, collection_items RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func envStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
