package ledger

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tujenge/tujenge/internal/account"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps one JSONB document per account with a version column
// used for conditional writes.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the accounts table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, acc account.Account) error {
	doc, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (phone, version, has_miners, has_investments, doc, created_at)
        VALUES ($1, 1, $2, $3, $4, $5)`,
		acc.Phone, len(acc.Miners) > 0, len(acc.Investments) > 0, doc, acc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", acc.Phone, account.ErrAccountExists)
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, phone string) (account.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT version, doc FROM accounts WHERE phone = $1`, phone)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, fmt.Errorf("account %s: %w", phone, account.ErrNotFound)
		}
		return account.Account{}, err
	}
	return acc, nil
}

func (s *PostgresStore) Update(ctx context.Context, phone string, fn UpdateFunc) (account.Account, error) {
	for attempt := 0; attempt < MaxUpdateAttempts; attempt++ {
		if err := waitRetry(ctx, attempt); err != nil {
			return account.Account{}, err
		}
		current, err := s.Get(ctx, phone)
		if err != nil {
			return account.Account{}, err
		}
		next := current.Clone()
		if err := fn(&next); err != nil {
			return current, err
		}
		next.Phone = phone
		doc, err := json.Marshal(next)
		if err != nil {
			return account.Account{}, fmt.Errorf("encode account: %w", err)
		}
		tag, err := s.db.Exec(ctx, `UPDATE accounts
        SET doc = $1, has_miners = $2, has_investments = $3, version = version + 1, updated_at = NOW()
        WHERE phone = $4 AND version = $5`,
			doc, len(next.Miners) > 0, len(next.Investments) > 0, phone, current.Version)
		if err != nil {
			return account.Account{}, err
		}
		if tag.RowsAffected() == 1 {
			next.Version = current.Version + 1
			return next, nil
		}
	}
	return account.Account{}, fmt.Errorf("account %s: %w", phone, ErrConflict)
}

func (s *PostgresStore) Delete(ctx context.Context, phone string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE phone = $1`, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", phone, account.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]account.Account, error) {
	return s.query(ctx, `SELECT version, doc FROM accounts ORDER BY created_at, phone`)
}

func (s *PostgresStore) ListWithMiners(ctx context.Context) ([]account.Account, error) {
	return s.query(ctx, `SELECT version, doc FROM accounts WHERE has_miners ORDER BY created_at, phone`)
}

func (s *PostgresStore) ListWithInvestments(ctx context.Context) ([]account.Account, error) {
	return s.query(ctx, `SELECT version, doc FROM accounts WHERE has_investments ORDER BY created_at, phone`)
}

// AppendNotificationAll prepends the entry to every inbox in one statement,
// keeping the newest account.MaxNotifications entries.
func (s *PostgresStore) AppendNotificationAll(ctx context.Context, n account.Notification) (int, error) {
	entry, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("encode notification: %w", err)
	}
	const query = `
        UPDATE accounts SET
            doc = jsonb_set(doc, '{notifications}', (
                SELECT COALESCE(jsonb_agg(e ORDER BY i), '[]'::jsonb)
                FROM jsonb_array_elements(
                    jsonb_build_array($1::jsonb) || COALESCE(NULLIF(doc->'notifications', 'null'::jsonb), '[]'::jsonb)
                ) WITH ORDINALITY AS t(e, i)
                WHERE i <= $2
            )),
            version = version + 1,
            updated_at = NOW()`
	tag, err := s.db.Exec(ctx, query, entry, account.MaxNotifications)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) query(ctx context.Context, sql string) ([]account.Account, error) {
	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (account.Account, error) {
	var (
		version int64
		doc     []byte
	)
	if err := row.Scan(&version, &doc); err != nil {
		return account.Account{}, err
	}
	var acc account.Account
	if err := json.Unmarshal(doc, &acc); err != nil {
		return account.Account{}, fmt.Errorf("decode account: %w", err)
	}
	acc.Version = version
	return acc, nil
}
