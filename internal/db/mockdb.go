package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func retry(n int, fn func() error) error {
	backoff := 200 * time.Millisecond
	for i := 0; i < n; i++ {
		if err := fn(); err == nil {
			return nil
		}
		time.Sleep(backoff)
		if backoff < 3*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("retry: giving up after %d tries", n)
}

// StartTestPostgres boots a disposable Postgres container, applies the
// embedded migrations and returns a ready pool. Cleanup is registered
// on the test.
func StartTestPostgres(t testing.TB) *pgxpool.Pool {
	t.Helper()

	// generous timeout for CI
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	// SQL wait (auth-ready, not just TCP open)
	req := tc.ContainerRequest{
		Image: "postgres:16-alpine",
		Env: map[string]string{
			"POSTGRES_USER":     "mailing",
			"POSTGRES_PASSWORD": "mailing",
			"POSTGRES_DB":       "mailing",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			// DSN used only for readiness probing
			return fmt.Sprintf("host=%s port=%s user=mailing password=mailing dbname=mailing sslmode=disable", host, port.Port())
		}).WithStartupTimeout(120 * time.Second).WithPollInterval(300 * time.Millisecond),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mp, err := c.MappedPort(ctx, "5432/tcp") // NOTE: must include /tcp
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://mailing:mailing@%s:%s/mailing?sslmode=disable", host, mp.Port())

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	// make pool slightly more forgiving in CI
	cfg.MaxConns = 4
	cfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pg ping: %v", err)
	}

	// Retry migrations briefly; the first heavy DDL can still race startup bits
	if err := retry(6, func() error {
		return Migrate(ctx, pool)
	}); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return pool
}
