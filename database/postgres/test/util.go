package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	containerName    = "postgres"
	containerVersion = "10.4"

	postgresUser     = "postgres"
	postgresPassword = "password"
	postgresDatabase = "testdb"

	maxWaitTime = 60 * time.Second
)

// StartPostgresDB launches a throwaway postgres container and returns its
// connection URL. The container expires on its own so a crashed test run
// doesn't leak it.
func StartPostgresDB(pool *dockertest.Pool) (string, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: containerName,
		Tag:        containerVersion,
		Env: []string{
			"POSTGRES_USER=" + postgresUser,
			"POSTGRES_PASSWORD=" + postgresPassword,
			"POSTGRES_DB=" + postgresDatabase,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "could not start postgres container")
	}

	_ = resource.Expire(uint(maxWaitTime.Seconds() * 10))

	databaseUrl := fmt.Sprintf(
		"postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		resource.GetPort("5432/tcp"),
		postgresDatabase,
	)

	return databaseUrl, nil
}

// WaitForConnection blocks until the database accepts connections, returning
// an open handle.
func WaitForConnection(databaseUrl string) (*sql.DB, error) {
	var db *sql.DB

	deadline := time.Now().Add(maxWaitTime)
	for {
		var err error
		db, err = sql.Open("pgx", databaseUrl)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			return db, nil
		}

		if time.Now().After(deadline) {
			return nil, errors.Wrap(err, "timed out waiting for postgres")
		}

		time.Sleep(time.Second)
	}
}
