package testhelpers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/config"
	"github.com/lookout-hq/lookout/pkg/database"
)

const (
	PostgresImage = "postgres:16-alpine"
	RedisImage    = "redis:7-alpine"
)

// shared starts a resource at most once per test binary and hands the
// same value to every caller.
type shared[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (s *shared[T]) get(t *testing.T, what string, setup func(context.Context) (T, error)) T {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping integration test in short mode (requires Docker for %s)", what)
	}
	s.once.Do(func() {
		s.value, s.err = setup(context.Background())
	})
	if s.err != nil {
		t.Fatalf("Failed to start %s: %v", what, s.err)
	}
	return s.value
}

// startContainer runs req and resolves the address tests connect to.
func startContainer(ctx context.Context, req testcontainers.ContainerRequest, endpoint func(testcontainers.Container) (string, error)) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("starting %s: %w", req.Image, err)
	}
	addr, err := endpoint(container)
	if err != nil {
		return nil, "", fmt.Errorf("resolving %s endpoint: %w", req.Image, err)
	}
	return container, addr, nil
}

// TestDB is a migrated Postgres shared by the tests of one package.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	postgres shared[*TestDB]
	redisSrv shared[*redis.Client]
)

// GetTestDB returns the package's Postgres container, starting and
// migrating it on first use.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()
	return postgres.get(t, "postgres", setupTestDB)
}

func setupTestDB(ctx context.Context) (*TestDB, error) {
	container, endpoint, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "lookout_test",
			"POSTGRES_USER":     "lookout",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The init server logs readiness before the real one does.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, func(c testcontainers.Container) (string, error) {
		return c.PortEndpoint(ctx, "5432/tcp", "")
	})
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://lookout:test_password@%s/lookout_test?sslmode=disable", endpoint)

	sqlDB, err := database.OpenSQL(connStr)
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("migrating test database: %w", err)
	}

	db, err := database.Connect(ctx, &database.Config{URL: connStr, MaxConnections: 5}, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("connecting to test database: %w", err)
	}

	return &TestDB{Container: container, DB: db, ConnStr: connStr}, nil
}

// SystemContext returns a context carrying an unscoped connection, as the
// scheduled jobs use. The cleanup function must be called.
func (tdb *TestDB) SystemContext(t *testing.T) (context.Context, func()) {
	t.Helper()
	ctx, cleanup, err := database.NewScopeProvider(tdb.DB).WithSystemScope(context.Background())
	if err != nil {
		t.Fatalf("failed to acquire system scope: %v", err)
	}
	return ctx, cleanup
}

// UserContext returns a context scoped to userID for row level security.
// The cleanup function must be called.
func (tdb *TestDB) UserContext(t *testing.T, userID uuid.UUID) (context.Context, func()) {
	t.Helper()
	ctx, cleanup, err := database.NewScopeProvider(tdb.DB).WithUserScope(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to acquire user scope: %v", err)
	}
	return ctx, cleanup
}

// GetTestRedis returns a client for the package's Redis container with
// the database flushed.
func GetTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redisSrv.get(t, "redis", setupTestRedis)
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("Failed to flush test redis: %v", err)
	}
	return client
}

func setupTestRedis(ctx context.Context) (*redis.Client, error) {
	_, endpoint, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, func(c testcontainers.Container) (string, error) {
		return c.PortEndpoint(ctx, "6379/tcp", "")
	})
	if err != nil {
		return nil, err
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	return database.NewRedisClient(ctx, &config.RedisConfig{Host: host, Port: port}, zap.NewNop())
}
