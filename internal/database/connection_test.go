package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(domain.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		Database:        "oncoprint",
		MaxOpenConns:    4,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		SSLMode:         "disable",
	})
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, int32(4), cfg.MinConns, "idle connections never exceed the pool size")
	assert.Equal(t, time.Hour, cfg.MaxConnLife)
}

func TestDatabaseConnectionAndMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	databaseURL, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewConnection(ctx, Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    "testpass",
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     "disable",
	}, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))
	assert.NotZero(t, db.Stats().TotalConns)

	migrationsPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	runner, err := NewMigrationRunner(databaseURL, migrationsPath, logger)
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Up(ctx), "second run is a no-op")
	status, err := runner.Status()
	require.NoError(t, err)
	assert.Equal(t, SchemaStatus{Version: SessionSchemaVersion, Expected: SessionSchemaVersion}, status)
	assert.True(t, status.Current())

	var tables int
	require.NoError(t, db.Pool.QueryRow(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_name = $1", SessionMigrationsTable).Scan(&tables))
	assert.Equal(t, 1, tables)

	store, err := session.NewPostgresStore(db.SQL())
	require.NoError(t, err)
	defer store.Close()

	saved := &session.Session{Query: map[string]string{"cancer_study_list": "acc_tcga", "gene_list": "TP53"}}
	require.NoError(t, store.Save(ctx, saved))
	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.Query, got.Query)

	require.NoError(t, store.Close())
	require.NoError(t, db.Health(ctx), "closing the session store leaves the pool open")

	require.NoError(t, runner.Down(ctx))
	status, err = runner.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(0), status.Version)
	assert.False(t, status.Current())
}

func TestMigrationsSource(t *testing.T) {
	t.Run("configured directory", func(t *testing.T) {
		dir := t.TempDir()
		source, err := migrationsSource(dir)
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.ToSlash(dir), source)
	})

	t.Run("empty path uses the default directory", func(t *testing.T) {
		_, err := migrationsSource("")
		require.Error(t, err, "package directory has no migrations folder")
		assert.Contains(t, err.Error(), DefaultMigrationsPath)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "001_sessions.up.sql")
		require.NoError(t, os.WriteFile(file, []byte("SELECT 1;"), 0o600))
		_, err := migrationsSource(file)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := NewMigrationRunner("postgres://localhost/none", filepath.Join(t.TempDir(), "absent"), logrus.New())
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestSchemaStatus_Current(t *testing.T) {
	tests := []struct {
		name   string
		status SchemaStatus
		want   bool
	}{
		{"never migrated", SchemaStatus{Expected: SessionSchemaVersion}, false},
		{"at expected version", SchemaStatus{Version: SessionSchemaVersion, Expected: SessionSchemaVersion}, true},
		{"ahead of this build", SchemaStatus{Version: SessionSchemaVersion + 1, Expected: SessionSchemaVersion}, true},
		{"dirty", SchemaStatus{Version: SessionSchemaVersion, Dirty: true, Expected: SessionSchemaVersion}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Current())
		})
	}
}
