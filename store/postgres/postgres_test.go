package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/Comcast/scxml/store"
	"github.com/Comcast/scxml/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpl(t *testing.T) {
	var _ store.Storage = &Storage{}
}

func TestEnvDSN(t *testing.T) {
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGUSER", "")
	t.Setenv("PGDATABASE", "")
	t.Setenv("PGPASSWORD", "secret")
	assert.Equal(t, "host=db port=6543 user=scxml dbname=scxml sslmode=disable password=secret", EnvDSN())
}

// TestPostgres needs a scratch database.  Set SCXML_PG to its
// connection string.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("SCXML_PG")
	if dsn == "" {
		t.Skip("SCXML_PG not set")
	}
	ctx := context.Background()

	s := NewStorage(dsn)
	require.NoError(t, s.Open(ctx))
	defer s.Close(ctx)

	_, err := s.db.ExecContext(ctx, `DELETE FROM scxml_documents; DELETE FROM scxml_sessions;`)
	require.NoError(t, err)

	storetest.Exercise(t, s)
}
