package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/makwansoran/futrledger/internal/domain"
)

// ScanCursorStore implements domain.ScanCursorStore using PostgreSQL.
type ScanCursorStore struct {
	q querier
}

// NewScanCursorStore creates a ScanCursorStore backed by the given connection
// pool.
func NewScanCursorStore(q querier) *ScanCursorStore {
	return &ScanCursorStore{q: q}
}

// Get returns the last scanned block for an identity, or 0 if the identity
// has never been scanned.
func (s *ScanCursorStore) Get(ctx context.Context, id domain.Identity) (uint64, error) {
	var block uint64
	err := s.q.QueryRow(ctx,
		`SELECT last_block FROM scan_cursors WHERE identity = $1`,
		string(id),
	).Scan(&block)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: get scan cursor for %s: %w", id, err)
	}
	return block, nil
}

// Set records the last scanned block for an identity. The GREATEST guard
// keeps a slow, stale scanner from moving the cursor backwards.
func (s *ScanCursorStore) Set(ctx context.Context, id domain.Identity, block uint64) error {
	const query = `
		INSERT INTO scan_cursors (identity, last_block, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identity) DO UPDATE SET
			last_block = GREATEST(scan_cursors.last_block, EXCLUDED.last_block),
			updated_at = NOW()`

	if _, err := s.q.Exec(ctx, query, string(id), block); err != nil {
		return fmt.Errorf("postgres: set scan cursor for %s: %w", id, err)
	}
	return nil
}
