package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	postgrestest "github.com/code-payments/billing-client/database/postgres/test"

	"github.com/code-payments/billing-client/billing/tests"

	_ "github.com/jackc/pgx/v4/stdlib"
)

var (
	testPool    *dockertest.Pool
	databaseUrl string
	testDB      *sql.DB
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	var err error
	testPool, err = dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	// Start a postgres container
	databaseUrl, err = postgrestest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}

	// Wait for the database to be ready
	testDB, err = postgrestest.WaitForConnection(databaseUrl)
	if err != nil {
		log.WithError(err).Error("Error waiting for connection")
		os.Exit(1)
	}

	// Apply the store schema
	err = CreateTables(context.Background(), testDB)
	if err != nil {
		log.WithError(err).Error("Error creating tables")
		os.Exit(1)
	}

	// Run tests
	code := m.Run()
	os.Exit(code)
}

func TestBilling_PostgresStore(t *testing.T) {
	testStore := NewInPostgres(testDB)
	teardown := func() {
		testStore.(*pgStore).reset()
	}
	tests.RunStoreTests(t, testStore, teardown)
}
