package index

import (
	"context"
	"fmt"

	"github.com/arbazkhan002/datasketch/internal/store"
	apperrors "github.com/arbazkhan002/datasketch/pkg/errors"
)

// InsertionSession buffers inserts for bulk application: one lock
// acquisition on the local backend, one pipeline round-trip on Redis, one
// transaction on Postgres. Buffered entries are not visible to queries
// until Flush.
//
// A session is not safe for concurrent use; open one session per goroutine.
type InsertionSession struct {
	postings store.Batch
	keys     store.Batch
	pending  int
}

// Session opens a buffered insertion session against the index's stores.
func (idx *InvertedIndex) Session() *InsertionSession {
	return &InsertionSession{
		postings: idx.postings.NewBatch(),
		keys:     idx.keys.NewBatch(),
	}
}

// Insert buffers a (docID, term) pair.
func (s *InsertionSession) Insert(docID, term string) error {
	if docID == "" || term == "" {
		return fmt.Errorf("%w: doc id and term must be non-empty", apperrors.ErrInvalidEntry)
	}
	s.keys.Insert(docID, term)
	s.postings.Insert(term, docID)
	s.pending++
	return nil
}

// Pending returns the number of buffered pairs not yet flushed.
func (s *InsertionSession) Pending() int {
	return s.pending
}

// Flush applies all buffered pairs to both stores. On success the buffer is
// empty and the session can be reused.
func (s *InsertionSession) Flush(ctx context.Context) error {
	if err := s.keys.Flush(ctx); err != nil {
		return err
	}
	if err := s.postings.Flush(ctx); err != nil {
		return err
	}
	s.pending = 0
	return nil
}
