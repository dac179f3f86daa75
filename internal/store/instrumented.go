package store

import (
	"context"
	"time"

	"github.com/arbazkhan002/datasketch/pkg/metrics"
)

// WithMetrics wraps a Store so that every operation records a count, a
// latency observation, and a failure count under the given backend label.
// The wrapped store is otherwise untouched; errors pass through unchanged.
func WithMetrics(s Store, backend string, m *metrics.Metrics) Store {
	return &instrumented{next: s, backend: backend, metrics: m}
}

type instrumented struct {
	next    Store
	backend string
	metrics *metrics.Metrics
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.metrics.StoreOpsTotal.WithLabelValues(i.backend, op).Inc()
	i.metrics.StoreOpDuration.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		i.metrics.StoreErrorsTotal.WithLabelValues(i.backend, op).Inc()
	}
}

func (i *instrumented) Insert(ctx context.Context, key, member string) error {
	start := time.Now()
	err := i.next.Insert(ctx, key, member)
	i.observe("insert", start, err)
	return err
}

func (i *instrumented) Members(ctx context.Context, key string) ([]string, error) {
	start := time.Now()
	members, err := i.next.Members(ctx, key)
	i.observe("members", start, err)
	return members, err
}

func (i *instrumented) Has(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := i.next.Has(ctx, key)
	i.observe("has", start, err)
	return ok, err
}

func (i *instrumented) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Remove(ctx, key)
	i.observe("remove", start, err)
	return err
}

func (i *instrumented) RemoveMember(ctx context.Context, key, member string) error {
	start := time.Now()
	err := i.next.RemoveMember(ctx, key, member)
	i.observe("remove_member", start, err)
	return err
}

func (i *instrumented) Keys(ctx context.Context) ([]string, error) {
	start := time.Now()
	keys, err := i.next.Keys(ctx)
	i.observe("keys", start, err)
	return keys, err
}

func (i *instrumented) Size(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := i.next.Size(ctx)
	i.observe("size", start, err)
	return n, err
}

func (i *instrumented) ItemCounts(ctx context.Context) (map[string]int64, error) {
	start := time.Now()
	counts, err := i.next.ItemCounts(ctx)
	i.observe("item_counts", start, err)
	return counts, err
}

func (i *instrumented) NewBatch() Batch {
	return &instrumentedBatch{next: i.next.NewBatch(), parent: i}
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}

type instrumentedBatch struct {
	next    Batch
	parent  *instrumented
	pending int
}

func (b *instrumentedBatch) Insert(key, member string) {
	b.next.Insert(key, member)
	b.pending++
}

func (b *instrumentedBatch) Flush(ctx context.Context) error {
	start := time.Now()
	err := b.next.Flush(ctx)
	b.parent.observe("batch_flush", start, err)
	if err == nil && b.pending > 0 {
		b.parent.metrics.BatchFlushSize.Observe(float64(b.pending))
	}
	b.pending = 0
	return err
}
