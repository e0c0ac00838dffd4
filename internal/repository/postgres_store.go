package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the same record layout as SQLiteStore in a jsonb
// column. The schema is created by infrastructure.PostgresClient.Migrate.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM records WHERE collection = $1 AND key = $2`, collection, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT key, doc FROM records WHERE collection = $1 ORDER BY key`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Key, &r.Doc); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO records (collection, key, doc, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, collection, key, doc)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM records WHERE collection = $1 AND key = $2`, collection, key)
	return err
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, fn func(current []byte) ([]byte, error)) ([]byte, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serialize writers on this key even when the row does not exist yet.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`, collection, key); err != nil {
		return nil, err
	}

	var current []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM records WHERE collection = $1 AND key = $2`, collection, key).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO records (collection, key, doc, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, collection, key, next)
	if err != nil {
		return nil, err
	}
	return next, tx.Commit(ctx)
}

// Close is a no-op; the pool belongs to the PostgresClient.
func (s *PostgresStore) Close() error {
	return nil
}
