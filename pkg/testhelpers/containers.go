// Package testhelpers provides shared fixtures for recon-engine tests:
// dataset builders and a postgres container for reader integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresImage is the stock PostgreSQL image used for reader integration
// tests.
const PostgresImage = "postgres:16-alpine"

const (
	testDatabase = "recon_test"
	testUser     = "recon"
	testPassword = "test_password"
)

// TestDB holds a shared test database container and connection pool.
// Host, Port and the credential fields are exposed so tests can build
// reader options that point at the container.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container starts once and is reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = startPostgres()
	})
	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}
	return sharedTestDB
}

func startPostgres() (*TestDB, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        PostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       testDatabase,
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
			},
			// Stock postgres images log the ready line twice: once during
			// initdb and once when the real server comes up.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("resolve mapped port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testUser, testPassword, host, port.Port(), testDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := waitReachable(ctx, pool, 5*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Int(),
		Database:  testDatabase,
		User:      testUser,
		Password:  testPassword,
	}, nil
}

// waitReachable pings until the server accepts connections. The log wait
// already gates on readiness; this covers the window where the port is
// mapped but the listener is still settling.
func waitReachable(ctx context.Context, pool *pgxpool.Pool, patience time.Duration) error {
	deadline := time.Now().Add(patience)
	for {
		err := pool.Ping(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres container never became reachable: %w", err)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// ReaderOptions returns a reader options map pointing at the container.
// The stock image does not serve TLS, so ssl_mode is pinned to disable.
func (db *TestDB) ReaderOptions() map[string]any {
	return map[string]any{
		"host":     db.Host,
		"port":     db.Port,
		"database": db.Database,
		"user":     db.User,
		"password": db.Password,
		"ssl_mode": "disable",
	}
}

// Seed executes the given statements against the container, failing the
// test on the first error. Use it to create and populate tables that a
// reader test will point at.
func (db *TestDB) Seed(t *testing.T, statements ...string) {
	t.Helper()

	ctx := context.Background()
	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("Failed to seed test database: %v", err)
		}
	}
}
