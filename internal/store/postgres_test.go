package store

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/arbazkhan002/datasketch/pkg/config"
	"github.com/arbazkhan002/datasketch/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Postgres tests need a live server; set DS_POSTGRES_TEST_HOST (and
// optionally DS_POSTGRES_TEST_PORT/DATABASE/USER/PASSWORD) to run them.
func newTestPostgres(t *testing.T, name string) *Postgres {
	t.Helper()
	host := os.Getenv("DS_POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("DS_POSTGRES_TEST_HOST not set")
	}
	cfg := config.PostgresConfig{
		Host:     host,
		Port:     5432,
		Database: "invidx_test",
		User:     "invidx",
		Password: "localdev",
		SSLMode:  "disable",
	}
	if v := os.Getenv("DS_POSTGRES_TEST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("DS_POSTGRES_TEST_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("DS_POSTGRES_TEST_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("DS_POSTGRES_TEST_PASSWORD"); v != "" {
		cfg.Password = v
	}
	client, err := postgres.New(cfg)
	require.NoError(t, err)
	s, err := NewPostgres(client, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := s.Keys(ctx)
		for _, key := range keys {
			s.Remove(ctx, key)
		}
		s.Close()
	})
	return s
}

func TestPostgresInsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t, t.Name())

	require.NoError(t, s.Insert(ctx, "minhash", "m1"))
	require.NoError(t, s.Insert(ctx, "minhash", "m1"))

	members, err := s.Members(ctx, "minhash")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, members)
}

func TestPostgresContract(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t, t.Name())

	require.NoError(t, s.Insert(ctx, "a", "d1"))
	require.NoError(t, s.Insert(ctx, "a", "d2"))
	require.NoError(t, s.Insert(ctx, "b", "d1"))

	members, err := s.Members(ctx, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d2"}, members)

	members, err = s.Members(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, members)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	counts, err := s.ItemCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 2, "b": 1}, counts)

	require.NoError(t, s.RemoveMember(ctx, "b", "d1"))
	ok, err := s.Has(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, "a"))
	n, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPostgresBatchFlush(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t, t.Name())

	batch := s.NewBatch()
	batch.Insert("term", "d1")
	batch.Insert("term", "d2")
	batch.Insert("term", "d2")

	require.NoError(t, batch.Flush(ctx))

	members, err := s.Members(ctx, "term")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d1", "d2"}, members)
}
