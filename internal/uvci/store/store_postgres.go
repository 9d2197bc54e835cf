package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"healthcert/internal/uvci"
	"healthcert/pkg/platform/sentinel"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint failures.
const pgUniqueViolation = "23505"

// PostgresStore persists UVCI records in PostgreSQL behind the pgx stdlib
// driver. The uvci column's unique index is the uniqueness authority.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed UVCI store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing table when absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS uvci_records (
			uvci             TEXT PRIMARY KEY,
			authority        TEXT NOT NULL,
			country          TEXT NOT NULL,
			subject_hash     TEXT NOT NULL,
			certificate_type TEXT NOT NULL,
			scenario         TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL,
			expires_at       TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure uvci schema: %w", err)
	}
	return nil
}

// Insert durably records the identifier before the generator may return it.
func (s *PostgresStore) Insert(ctx context.Context, record uvci.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uvci_records (uvci, authority, country, subject_hash, certificate_type, scenario, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.UVCI,
		record.Authority,
		record.Country,
		record.SubjectHash,
		string(record.CertificateType),
		string(record.Scenario),
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("uvci %q: %w", record.UVCI, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert uvci record: %w", err)
	}
	return nil
}

// CountBySubject reports how many non-expired identifiers exist for a subject
// hash; used for audit queries.
func (s *PostgresStore) CountBySubject(ctx context.Context, subjectHash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM uvci_records
		WHERE subject_hash = $1 AND expires_at > NOW()`, subjectHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count uvci records: %w", err)
	}
	return n, nil
}
