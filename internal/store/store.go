// Package store is the sqlx data-access layer: medicine stock ledger,
// transaction engine, stock opname persistence, directories and the
// reporting reads. Multi-step writes run inside a single database
// transaction so readers never observe partial state.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only callers.
func (s *Store) DB() *sqlx.DB { return s.db }

// nextSequence bumps the named counter inside the caller's transaction
// and formats the new document number. The row is created lazily so new
// year/day buckets need no seeding.
func nextSequence(tx *sqlx.Tx, name, prefix string, padding int) (string, error) {
	if _, err := tx.Exec(`INSERT INTO code_sequences (name, last_no) VALUES (?, 0) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return "", fmt.Errorf("failed to init sequence '%s': %w", name, err)
	}

	var lastNo int
	if err := tx.Get(&lastNo, `SELECT last_no FROM code_sequences WHERE name = ?`, name); err != nil {
		return "", fmt.Errorf("failed to get sequence '%s': %w", name, err)
	}

	newNo := lastNo + 1
	if _, err := tx.Exec(`UPDATE code_sequences SET last_no = ? WHERE name = ?`, newNo, name); err != nil {
		return "", fmt.Errorf("failed to update sequence '%s': %w", name, err)
	}

	format := fmt.Sprintf("%s%%0%dd", prefix, padding)
	return fmt.Sprintf(format, newNo), nil
}
