package helper

import (
	"context"
	"flag"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	dbName = "database"
	dbUser = "user"
	dbPwd  = "password"
)

// MustStartPostgresContainer starts a pgvector enabled postgres container and
// returns its teardown function and the mapped port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	dbContainer, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", NewError("start postgres container", err)
	}

	dbPort, err := dbContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, "", NewError("get mapped port", fmt.Errorf("%v", err))
	}

	return dbContainer.Terminate, dbPort.Port(), nil
}

// RunWithPostgres runs the tests of a package against a fresh container and
// stores its port in port. In -short mode no container is started and port
// stays empty, so database tests skip themselves via SkipWithoutPostgres.
func RunWithPostgres(m *testing.M, port *string) int {
	flag.Parse()
	if testing.Short() {
		return m.Run()
	}

	teardown, p, err := MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}
	*port = p

	code := m.Run()

	if err := teardown(context.Background()); err != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
	return code
}

// SkipWithoutPostgres skips t when RunWithPostgres did not start a container.
func SkipWithoutPostgres(t *testing.T, port string) {
	t.Helper()
	if port == "" {
		t.Skip("postgres container not started in short mode")
	}
}
