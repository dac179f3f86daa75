package store

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/arbazkhan002/datasketch/pkg/errors"
	"github.com/arbazkhan002/datasketch/pkg/postgres"
)

// Postgres is a Store backed by a single postings table. One row per
// (store name, key, member); the primary key makes insertion idempotent via
// ON CONFLICT DO NOTHING. All stores share the table, discriminated by the
// name column, mirroring the Redis prefix namespacing.
type Postgres struct {
	client *postgres.Client
	name   string
}

const postingsSchema = `
CREATE TABLE IF NOT EXISTS postings (
	name   TEXT NOT NULL,
	key    TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (name, key, member)
)`

// NewPostgres creates a Postgres-backed store under the given namespace,
// creating the postings table if it does not exist.
func NewPostgres(client *postgres.Client, name string) (*Postgres, error) {
	if _, err := client.DB.Exec(postingsSchema); err != nil {
		return nil, fmt.Errorf("creating postings table: %w", err)
	}
	return &Postgres{client: client, name: name}, nil
}

func (p *Postgres) Insert(ctx context.Context, key, member string) error {
	_, err := p.client.DB.ExecContext(ctx,
		`INSERT INTO postings (name, key, member) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		p.name, key, member,
	)
	if err != nil {
		return apperrors.NewStoreError("postgres", "insert", key, err)
	}
	return nil
}

func (p *Postgres) Members(ctx context.Context, key string) ([]string, error) {
	rows, err := p.client.DB.QueryContext(ctx,
		`SELECT member FROM postings WHERE name = $1 AND key = $2`,
		p.name, key,
	)
	if err != nil {
		return nil, apperrors.NewStoreError("postgres", "members", key, err)
	}
	defer rows.Close()
	var members []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, apperrors.NewStoreError("postgres", "members", key, err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("postgres", "members", key, err)
	}
	return members, nil
}

func (p *Postgres) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := p.client.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM postings WHERE name = $1 AND key = $2)`,
		p.name, key,
	).Scan(&exists)
	if err != nil {
		return false, apperrors.NewStoreError("postgres", "has", key, err)
	}
	return exists, nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.client.DB.ExecContext(ctx,
		`DELETE FROM postings WHERE name = $1 AND key = $2`,
		p.name, key,
	)
	if err != nil {
		return apperrors.NewStoreError("postgres", "remove", key, err)
	}
	return nil
}

func (p *Postgres) RemoveMember(ctx context.Context, key, member string) error {
	_, err := p.client.DB.ExecContext(ctx,
		`DELETE FROM postings WHERE name = $1 AND key = $2 AND member = $3`,
		p.name, key, member,
	)
	if err != nil {
		return apperrors.NewStoreError("postgres", "remove_member", key, err)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.client.DB.QueryContext(ctx,
		`SELECT DISTINCT key FROM postings WHERE name = $1`,
		p.name,
	)
	if err != nil {
		return nil, apperrors.NewStoreError("postgres", "keys", "", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, apperrors.NewStoreError("postgres", "keys", "", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("postgres", "keys", "", err)
	}
	return keys, nil
}

func (p *Postgres) Size(ctx context.Context) (int, error) {
	var n int
	err := p.client.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT key) FROM postings WHERE name = $1`,
		p.name,
	).Scan(&n)
	if err != nil {
		return 0, apperrors.NewStoreError("postgres", "size", "", err)
	}
	return n, nil
}

func (p *Postgres) ItemCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := p.client.DB.QueryContext(ctx,
		`SELECT key, COUNT(*) FROM postings WHERE name = $1 GROUP BY key`,
		p.name,
	)
	if err != nil {
		return nil, apperrors.NewStoreError("postgres", "item_counts", "", err)
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, apperrors.NewStoreError("postgres", "item_counts", "", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("postgres", "item_counts", "", err)
	}
	return counts, nil
}

func (p *Postgres) NewBatch() Batch {
	return &postgresBatch{store: p}
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return apperrors.NewStoreError("postgres", "ping", "", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.client.Close()
}

type postgresBatch struct {
	store   *Postgres
	entries []entry
}

func (b *postgresBatch) Insert(key, member string) {
	b.entries = append(b.entries, entry{key: key, member: member})
}

// Flush applies all buffered entries in a single transaction.
func (b *postgresBatch) Flush(ctx context.Context) error {
	if len(b.entries) == 0 {
		return nil
	}
	err := b.store.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO postings (name, key, member) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range b.entries {
			if _, err := stmt.ExecContext(ctx, b.store.name, e.key, e.member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewStoreError("postgres", "batch_flush", "", err)
	}
	b.entries = b.entries[:0]
	return nil
}
