package index

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/arbazkhan002/datasketch/internal/store"
	"github.com/arbazkhan002/datasketch/pkg/config"
	apperrors "github.com/arbazkhan002/datasketch/pkg/errors"
	"github.com/arbazkhan002/datasketch/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newLocalIndex() *InvertedIndex {
	return New(store.NewLocal(), store.NewLocal())
}

func newRedisIndex(t *testing.T) *InvertedIndex {
	t.Helper()
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)
	cfg := config.RedisConfig{Host: srv.Host(), Port: port}
	postingsClient, err := redis.NewClient(cfg)
	require.NoError(t, err)
	keysClient, err := redis.NewClient(cfg)
	require.NoError(t, err)
	idx := New(
		store.NewRedis(postingsClient, "test:index"),
		store.NewRedis(keysClient, "test:keys"),
	)
	t.Cleanup(func() { idx.Close() })
	return idx
}

// backends returns one index per backend so every property is checked
// against both; the remote variant runs on an in-process redis server.
func backends(t *testing.T) map[string]*InvertedIndex {
	t.Helper()
	return map[string]*InvertedIndex{
		"local": newLocalIndex(),
		"redis": newRedisIndex(t),
	}
}

func TestInsertIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))

			docs, err := idx.Query(ctx, "minhash")
			require.NoError(t, err)
			assert.Equal(t, []string{"m1"}, docs)
		})
	}
}

func TestQueryAbsentTermIsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			docs, err := idx.Query(ctx, "similarity")
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestUnionAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m2", "minhash"))

			docs, err := idx.Query(ctx, "minhash")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"m1", "m2"}, docs)
		})
	}
}

func TestCrossDocumentIndependence(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "d1", "alpha"))
			require.NoError(t, idx.Insert(ctx, "d2", "beta"))

			docs, err := idx.Query(ctx, "beta")
			require.NoError(t, err)
			assert.Equal(t, []string{"d2"}, docs)
		})
	}
}

// The worked example from the documentation: three documents sharing the
// term "minhash", one containing "is", none containing "similarity".
func TestMinhashScenario(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m1", "is"))
			require.NoError(t, idx.Insert(ctx, "m2", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m3", "minhash"))

			docs, err := idx.Query(ctx, "minhash")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, docs)

			docs, err = idx.Query(ctx, "is")
			require.NoError(t, err)
			assert.Equal(t, []string{"m1"}, docs)

			docs, err = idx.Query(ctx, "similarity")
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

// Replaying one insert sequence against both backends must produce
// identical query results, compared as sets.
func TestBackendEquivalence(t *testing.T) {
	ctx := context.Background()
	inserts := [][2]string{
		{"m1", "minhash"}, {"m1", "is"}, {"m1", "a"},
		{"m2", "minhash"}, {"m2", "probability"},
		{"m3", "minhash"}, {"m3", "probability"}, {"m3", "is"},
	}
	terms := []string{"minhash", "is", "a", "probability", "similarity"}

	local := newLocalIndex()
	remote := newRedisIndex(t)
	for _, pair := range inserts {
		require.NoError(t, local.Insert(ctx, pair[0], pair[1]))
		require.NoError(t, remote.Insert(ctx, pair[0], pair[1]))
	}

	for _, term := range terms {
		localDocs, err := local.Query(ctx, term)
		require.NoError(t, err)
		remoteDocs, err := remote.Query(ctx, term)
		require.NoError(t, err)
		assert.ElementsMatch(t, localDocs, remoteDocs, "term %q", term)
	}
}

func TestInsertRejectsEmptyValues(t *testing.T) {
	ctx := context.Background()
	idx := newLocalIndex()

	assert.ErrorIs(t, idx.Insert(ctx, "", "term"), apperrors.ErrInvalidEntry)
	assert.ErrorIs(t, idx.Insert(ctx, "doc", ""), apperrors.ErrInvalidEntry)

	_, err := idx.Query(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntry)
}

func TestContains(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))

			ok, err := idx.Contains(ctx, "m1")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = idx.Contains(ctx, "m2")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m1", "is"))
			require.NoError(t, idx.Insert(ctx, "m2", "minhash"))

			require.NoError(t, idx.Remove(ctx, "m1"))

			docs, err := idx.Query(ctx, "minhash")
			require.NoError(t, err)
			assert.Equal(t, []string{"m2"}, docs)

			// "is" only appeared in m1, so its postings list is gone.
			docs, err = idx.Query(ctx, "is")
			require.NoError(t, err)
			assert.Empty(t, docs)

			ok, err := idx.Contains(ctx, "m1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRemoveUnknownDoc(t *testing.T) {
	ctx := context.Background()
	idx := newLocalIndex()

	err := idx.Remove(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrDocNotFound)
}

func TestIsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := idx.IsEmpty(ctx)
			require.NoError(t, err)
			assert.True(t, empty)

			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
			empty, err = idx.IsEmpty(ctx)
			require.NoError(t, err)
			assert.False(t, empty)
		})
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m2", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m1", "is"))

			counts, err := idx.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"minhash": 2, "is": 1}, counts)
		})
	}
}

func TestSubsetCounts(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m1", "is"))
			require.NoError(t, idx.Insert(ctx, "m2", "minhash"))
			require.NoError(t, idx.Insert(ctx, "m3", "minhash"))

			counts, err := idx.SubsetCounts(ctx, "m1", "m2", "m2")
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"minhash": 2, "is": 1}, counts)
		})
	}
}

func TestInsertionSession(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			session := idx.Session()
			require.NoError(t, session.Insert("m1", "minhash"))
			require.NoError(t, session.Insert("m2", "minhash"))
			assert.Equal(t, 2, session.Pending())

			docs, err := idx.Query(ctx, "minhash")
			require.NoError(t, err)
			assert.Empty(t, docs, "buffered inserts must not be visible before flush")

			require.NoError(t, session.Flush(ctx))
			assert.Equal(t, 0, session.Pending())

			docs, err = idx.Query(ctx, "minhash")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"m1", "m2"}, docs)

			ok, err := idx.Contains(ctx, "m1")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestSessionRejectsEmptyValues(t *testing.T) {
	idx := newLocalIndex()
	session := idx.Session()
	assert.ErrorIs(t, session.Insert("", "term"), apperrors.ErrInvalidEntry)
	assert.ErrorIs(t, session.Insert("doc", ""), apperrors.ErrInvalidEntry)
	assert.Equal(t, 0, session.Pending())
}

// Two indexes pointed at the same remote store observe each other's writes.
func TestSharedRemoteStore(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)
	cfg := config.RedisConfig{Host: srv.Host(), Port: port}

	open := func() *InvertedIndex {
		pc, err := redis.NewClient(cfg)
		require.NoError(t, err)
		kc, err := redis.NewClient(cfg)
		require.NoError(t, err)
		idx := New(store.NewRedis(pc, "shared:index"), store.NewRedis(kc, "shared:keys"))
		t.Cleanup(func() { idx.Close() })
		return idx
	}

	writer := open()
	reader := open()

	require.NoError(t, writer.Insert(ctx, "m1", "minhash"))

	docs, err := reader.Query(ctx, "minhash")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, docs)
}

func TestOpenLocalBackend(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Load("")
	require.NoError(t, err)

	idx, err := Open(cfg)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
	docs, err := idx.Query(ctx, "minhash")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, docs)
}

func TestOpenRedisBackend(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Backend = config.BackendRedis
	cfg.Redis.Host = srv.Host()
	cfg.Redis.Port = port

	idx, err := Open(cfg)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Insert(ctx, "m1", "minhash"))
	docs, err := idx.Query(ctx, "minhash")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, docs)
}

func TestConcurrentInsertsUnion(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const n = 32
			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < n; i++ {
				docID := fmt.Sprintf("doc-%d", i)
				g.Go(func() error {
					return idx.Insert(gctx, docID, "shared-term")
				})
			}
			require.NoError(t, g.Wait())

			docs, err := idx.Query(ctx, "shared-term")
			require.NoError(t, err)
			assert.Len(t, docs, n)
		})
	}
}
