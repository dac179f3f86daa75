// Package index implements an inverted index: a mapping from an opaque term
// to the set of document ids whose document contains that term. All storage
// is delegated to an injected postings store, so the index works identically
// over the in-process, Redis, and Postgres backends.
//
// Alongside the term-to-documents postings the index maintains a reverse
// map from document id to the terms inserted under it, which backs
// Contains, Remove, and SubsetCounts.
package index

import (
	"context"
	"fmt"

	"github.com/arbazkhan002/datasketch/internal/store"
	"github.com/arbazkhan002/datasketch/pkg/config"
	apperrors "github.com/arbazkhan002/datasketch/pkg/errors"
	"github.com/arbazkhan002/datasketch/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// InvertedIndex is the public entry point. It is stateless beyond the two
// store handles; all postings state lives in the stores, so any number of
// indexes pointed at the same remote store share one dataset.
type InvertedIndex struct {
	postings store.Store
	keys     store.Store
	metrics  *metrics.Metrics
}

// New creates an index over an already-constructed pair of stores: postings
// holds term -> doc ids, keys holds doc id -> terms. Both must come from the
// same backend for Remove to stay consistent.
func New(postings, keys store.Store) *InvertedIndex {
	return &InvertedIndex{postings: postings, keys: keys}
}

// Open constructs an index with both stores opened from cfg, namespaced
// under cfg.Store.Prefix. The index owns the stores; Close releases them.
func Open(cfg *config.Config) (*InvertedIndex, error) {
	postings, err := store.Open(cfg, cfg.Store.Prefix+":index")
	if err != nil {
		return nil, fmt.Errorf("opening postings store: %w", err)
	}
	keys, err := store.Open(cfg, cfg.Store.Prefix+":keys")
	if err != nil {
		postings.Close()
		return nil, fmt.Errorf("opening keys store: %w", err)
	}
	return New(postings, keys), nil
}

// Instrument records insert/query metrics on m. Store-level latency is
// instrumented separately via store.WithMetrics.
func (idx *InvertedIndex) Instrument(m *metrics.Metrics) *InvertedIndex {
	idx.metrics = m
	return idx
}

// Insert adds term under docID. Inserting the same pair twice is idempotent.
func (idx *InvertedIndex) Insert(ctx context.Context, docID, term string) error {
	if docID == "" || term == "" {
		return fmt.Errorf("%w: doc id and term must be non-empty", apperrors.ErrInvalidEntry)
	}
	if err := idx.keys.Insert(ctx, docID, term); err != nil {
		return err
	}
	if err := idx.postings.Insert(ctx, term, docID); err != nil {
		return err
	}
	if idx.metrics != nil {
		idx.metrics.InsertsTotal.Inc()
	}
	return nil
}

// Query returns the ids of all documents containing term, in arbitrary
// order. A term never inserted yields an empty result, not an error.
func (idx *InvertedIndex) Query(ctx context.Context, term string) ([]string, error) {
	if term == "" {
		return nil, fmt.Errorf("%w: term must be non-empty", apperrors.ErrInvalidEntry)
	}
	docs, err := idx.postings.Members(ctx, term)
	if idx.metrics != nil {
		switch {
		case err != nil:
			idx.metrics.QueriesTotal.WithLabelValues("error").Inc()
		case len(docs) == 0:
			idx.metrics.QueriesTotal.WithLabelValues("zero_result").Inc()
		default:
			idx.metrics.QueriesTotal.WithLabelValues("hit").Inc()
			idx.metrics.PostingsReturned.Observe(float64(len(docs)))
		}
	}
	return docs, err
}

// Contains reports whether any term was ever inserted under docID.
func (idx *InvertedIndex) Contains(ctx context.Context, docID string) (bool, error) {
	return idx.keys.Has(ctx, docID)
}

// Remove deletes docID from every postings list it appears in, dropping
// postings lists that become empty. Removing an unknown docID returns
// ErrDocNotFound.
func (idx *InvertedIndex) Remove(ctx context.Context, docID string) error {
	ok, err := idx.keys.Has(ctx, docID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", apperrors.ErrDocNotFound, docID)
	}
	terms, err := idx.keys.Members(ctx, docID)
	if err != nil {
		return err
	}
	for _, term := range terms {
		if err := idx.postings.RemoveMember(ctx, term, docID); err != nil {
			return err
		}
	}
	return idx.keys.Remove(ctx, docID)
}

// IsEmpty reports whether no term has any postings.
func (idx *InvertedIndex) IsEmpty(ctx context.Context) (bool, error) {
	n, err := idx.postings.Size(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Counts returns the postings-list size for every term in the index.
func (idx *InvertedIndex) Counts(ctx context.Context) (map[string]int64, error) {
	return idx.postings.ItemCounts(ctx)
}

// SubsetCounts returns, for the given documents only, how many of them
// contain each term. Reverse-map reads fan out concurrently.
func (idx *InvertedIndex) SubsetCounts(ctx context.Context, docIDs ...string) (map[string]int64, error) {
	unique := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		unique[id] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	termLists := make([][]string, 0, len(unique))
	slots := make(map[string]int, len(unique))
	for id := range unique {
		slots[id] = len(termLists)
		termLists = append(termLists, nil)
	}
	for id, slot := range slots {
		id, slot := id, slot
		g.Go(func() error {
			terms, err := idx.keys.Members(gctx, id)
			if err != nil {
				return err
			}
			termLists[slot] = terms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, terms := range termLists {
		for _, term := range terms {
			counts[term]++
		}
	}
	return counts, nil
}

// Close releases both store handles.
func (idx *InvertedIndex) Close() error {
	err := idx.postings.Close()
	if kerr := idx.keys.Close(); err == nil {
		err = kerr
	}
	return err
}
