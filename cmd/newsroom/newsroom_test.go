package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rtemka/newsroom/pkg/auth"
	"github.com/rtemka/newsroom/pkg/storage/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setRequired(t *testing.T) {
	t.Setenv(portEnv, ":0")
	t.Setenv(dbURLEnv, "file:cmd.db?cache=shared&mode=memory")
	t.Setenv(secretEnv, "secret")
}

func TestEnvs(t *testing.T) {
	t.Setenv("NEWSROOM_TEST_A", "a")

	em, err := envs("NEWSROOM_TEST_A")
	require.NoError(t, err)
	assert.Equal(t, "a", em["NEWSROOM_TEST_A"])

	_, err = envs("NEWSROOM_TEST_A", "NEWSROOM_TEST_MISSING")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, driverSQLite, cfg.driver)
		assert.Equal(t, auth.DefaultTTL, cfg.sessionTTL)
		assert.Equal(t, []byte("secret"), cfg.secret)
		assert.True(t, cfg.filter.Banned("негодяй"))
	})

	t.Run("optional", func(t *testing.T) {
		setRequired(t)
		t.Setenv(driverEnv, driverMemory)
		t.Setenv(badWordsEnv, "spam, ham")
		t.Setenv(sessionTTLEnv, "90m")

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, driverMemory, cfg.driver)
		assert.Equal(t, 90*time.Minute, cfg.sessionTTL)
		assert.True(t, cfg.filter.Banned("HAM"))
		assert.False(t, cfg.filter.Banned("негодяй"))
	})

	t.Run("errors", func(t *testing.T) {
		tests := map[string]map[string]string{
			"unknown_driver": {driverEnv: "mongo"},
			"bad_ttl":        {sessionTTLEnv: "tomorrow"},
			"negative_ttl":   {sessionTTLEnv: "-1h"},
			"empty_secret":   {secretEnv: ""},
		}
		for name, env := range tests {
			t.Run(name, func(t *testing.T) {
				setRequired(t)
				for k, v := range env {
					t.Setenv(k, v)
				}
				_, err := loadConfig()
				assert.Error(t, err)
			})
		}
	})

	t.Run("missing_secret", func(t *testing.T) {
		setRequired(t)
		require.NoError(t, os.Unsetenv(secretEnv))
		_, err := loadConfig()
		assert.Error(t, err)
	})
}

func TestConnectDB(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		db, err := connectDB(config{driver: driverMemory, seedFile: "ignored.sql"}, zap.NewNop(), 1, 0)
		require.NoError(t, err)
		assert.IsType(t, &memdb.MemDB{}, db)
	})

	t.Run("sqlite_with_seed", func(t *testing.T) {
		seed := filepath.Join(t.TempDir(), "seed.sql")
		require.NoError(t, os.WriteFile(seed, []byte(
			`INSERT INTO news (title, text, pub_date) VALUES ('Заголовок', 'Текст', 1);`), 0o600))

		cfg := config{
			driver:   driverSQLite,
			dbURL:    "file:connect.db?cache=shared&mode=memory",
			seedFile: seed,
		}
		db, err := connectDB(cfg, zap.NewNop(), 1, 0)
		require.NoError(t, err)
		defer db.Close()

		n, err := db.CountArticles(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("bad_seed", func(t *testing.T) {
		cfg := config{
			driver:   driverSQLite,
			dbURL:    "file:badseed.db?cache=shared&mode=memory",
			seedFile: filepath.Join(t.TempDir(), "missing.sql"),
		}
		_, err := connectDB(cfg, zap.NewNop(), 1, 0)
		assert.Error(t, err)
	})
}

func TestZapLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := zapLogger(&buf)
	zl.Info("hello", zap.String("k", "v"))
	require.NoError(t, zl.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])
	assert.Contains(t, line, "time")
	assert.Contains(t, line, "caller")
}
