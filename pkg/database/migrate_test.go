package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/00001_users.sql",
		"migrations/00002_verification_codes.sql",
		"migrations/00003_refresh_sessions.sql",
	}, names)
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), nil))
	assert.Equal(t, "migrations", gotDir)
}

func TestMigrate_WrapsError(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }
	err := Migrate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate: boom")
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, "'UTC'", quoteValue("UTC"))
	assert.Equal(t, `'it\'s'`, quoteValue("it's"))
	assert.Equal(t, `'a\\b'`, quoteValue(`a\b`))
}

func TestWithSessionParams(t *testing.T) {
	t.Run("url dsn", func(t *testing.T) {
		dsn, err := withSessionParams(Config{
			DSN:            "postgres://u:p@db:5432/account?sslmode=disable",
			TimeZone:       "Asia/Shanghai",
			ClientEncoding: "UTF8",
		})
		require.NoError(t, err)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "db:5432", u.Host)
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
		assert.Equal(t, "Asia/Shanghai", u.Query().Get("timezone"))
		assert.Equal(t, "UTF8", u.Query().Get("client_encoding"))
	})

	t.Run("key value dsn", func(t *testing.T) {
		dsn, err := withSessionParams(Config{DSN: "host=db dbname=account", TimeZone: "UTC"})
		require.NoError(t, err)
		assert.Equal(t, "host=db dbname=account timezone='UTC'", dsn)
	})

	t.Run("nothing to add", func(t *testing.T) {
		dsn, err := withSessionParams(Config{DSN: "host=db"})
		require.NoError(t, err)
		assert.Equal(t, "host=db", dsn)
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_MAX_CONNS", "12")
	t.Setenv("DATABASE_AUTO_MIGRATE", "1")
	cfg := ConfigFromEnv()
	assert.Contains(t, cfg.DSN, "localhost:5432")
	assert.Equal(t, 12, cfg.MaxConns)
	assert.True(t, cfg.AutoMigrate)
}
