//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PostgresStoreSuite struct {
	StoreSuite
	pg *Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pg, err := Connect(ctx, databaseURL)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Migrate(ctx))

	s := &PostgresStoreSuite{pg: pg}
	s.newStore = func() Store { return pg }
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.pool.Exec(context.Background(),
		`TRUNCATE accounts, ledger_entries, settlement_intents, multisig_proposals RESTART IDENTITY`)
	s.Require().NoError(err)
	s.StoreSuite.SetupTest()
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.Require().NoError(s.pg.Migrate(context.Background()))
}
