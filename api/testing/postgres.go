// Package apitesting provides container-backed databases for
// integration tests.
package apitesting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"

	pgstore "github.com/glancehq/pulse/store/postgres"
)

// PostgresDBConfig holds the PostgreSQL test container configuration.
type PostgresDBConfig struct {
	Database       string
	Username       string
	Password       string
	Port           string
	ContainerImage string
}

func (cfg *PostgresDBConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Username == "" {
		cfg.Username = "postgres"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "postgres:17-alpine"
	}
	return nil
}

// PostgresDB represents a PostgreSQL test container shared by a test
// package; each test gets its own database inside it.
type PostgresDB struct {
	log       *slog.Logger
	cfg       *PostgresDBConfig
	addr      string
	container *tcpg.PostgresContainer
}

// Addr returns the host:port of the container.
func (db *PostgresDB) Addr() string {
	return db.addr
}

// DSN returns a connection string for the given database name.
func (db *PostgresDB) DSN(database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		db.cfg.Username, db.cfg.Password, db.addr, database)
}

// Close terminates the container.
func (db *PostgresDB) Close() {
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.container.Terminate(terminateCtx); err != nil {
		db.log.Error("failed to terminate PostgreSQL container", "error", err)
	}
}

// NewPostgresDB creates a new PostgreSQL testcontainer.
func NewPostgresDB(ctx context.Context, log *slog.Logger, cfg *PostgresDBConfig) (*PostgresDB, error) {
	if cfg == nil {
		cfg = &PostgresDBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate PostgreSQL DB config: %w", err)
	}

	// Retry container start for retryable errors
	var container *tcpg.PostgresContainer
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tcpg.Run(ctx,
			cfg.ContainerImage,
			tcpg.WithDatabase(cfg.Database),
			tcpg.WithUsername(cfg.Username),
			tcpg.WithPassword(cfg.Password),
			tcpg.BasicWaitStrategies(),
		)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < 3 {
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("failed to start PostgreSQL container after retries: %w", lastErr)
		}
		break
	}
	if container == nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container after retries: %w", lastErr)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL container host: %w", err)
	}

	port := nat.Port(fmt.Sprintf("%s/tcp", cfg.Port))
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL container mapped port: %w", err)
	}

	return &PostgresDB{
		log:       log,
		cfg:       cfg,
		addr:      fmt.Sprintf("%s:%s", host, mappedPort.Port()),
		container: container,
	}, nil
}

// SetupTestPostgres creates a uniquely named database inside the
// container, runs migrations against it, and returns a connection
// pool. Cleanup drops the database.
func SetupTestPostgres(t *testing.T, db *PostgresDB) *pgxpool.Pool {
	t.Helper()
	ctx := t.Context()

	randomSuffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	databaseName := fmt.Sprintf("test_%s", randomSuffix)

	adminPool, err := pgxpool.New(ctx, db.DSN(db.cfg.Database))
	require.NoError(t, err, "failed to create PostgreSQL admin pool")

	_, err = adminPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", databaseName))
	require.NoError(t, err, "failed to create test database")

	dsn := db.DSN(databaseName)
	require.NoError(t, pgstore.RunMigrations(ctx, slog.Default(), dsn), "failed to run migrations")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "failed to create PostgreSQL test pool")

	t.Cleanup(func() {
		pool.Close()
		_, _ = adminPool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", databaseName))
		adminPool.Close()
	})

	return pool
}

// isRetryableContainerStartErr reports whether a container start error
// is transient (port clashes, docker races) and worth retrying.
func isRetryableContainerStartErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "port is already allocated") ||
		strings.Contains(msg, "address already in use") ||
		strings.Contains(msg, "container name") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "EOF")
}
