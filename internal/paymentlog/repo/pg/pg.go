package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/mondb-dev/x402-wp/internal/paymentlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS x402_payment_logs (
	id BIGSERIAL PRIMARY KEY,
	resource_id TEXT NOT NULL,
	user_address TEXT NOT NULL,
	normalized_address TEXT NOT NULL,
	amount TEXT NOT NULL,
	token_address TEXT NOT NULL,
	network TEXT NOT NULL,
	transaction_hash TEXT,
	payer_identifier TEXT NOT NULL,
	settlement_proof TEXT,
	status TEXT NOT NULL,
	facilitator_signature TEXT,
	facilitator_reference TEXT,
	error_status INTEGER,
	error_code TEXT,
	error_message TEXT,
	facilitator_message TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS x402_resourceidx ON x402_payment_logs(resource_id);
CREATE INDEX IF NOT EXISTS x402_normalizedidx ON x402_payment_logs(normalized_address);
CREATE INDEX IF NOT EXISTS x402_payeridx ON x402_payment_logs(payer_identifier);
`

func New(dbConnStr string) (*Repo, error) {
	db, err := sqlx.Connect("postgres", dbConnStr)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Connect: %w", err)
	}

	// sqlx default is 0 (unlimited), while postgresql by default accepts up to 100 connections
	db.SetMaxOpenConns(80)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("db.Exec schema: %w", err)
	}

	return NewFromDB(db), nil
}

// NewFromDB wraps an already migrated database.
func NewFromDB(db *sqlx.DB) *Repo {
	return &Repo{
		db: db,
	}
}

type Repo struct {
	db *sqlx.DB
}

func (r *Repo) CreateEntry(ctx context.Context, e paymentlog.Entry) (*paymentlog.Entry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	query, args, err := sqlx.Named(`INSERT INTO x402_payment_logs (resource_id, user_address, normalized_address, amount, token_address, network,
transaction_hash, payer_identifier, settlement_proof, status, facilitator_signature, facilitator_reference,
error_status, error_code, error_message, facilitator_message, created_at)
VALUES (:resource_id, :user_address, :normalized_address, :amount, :token_address, :network,
:transaction_hash, :payer_identifier, :settlement_proof, :status, :facilitator_signature, :facilitator_reference,
:error_status, :error_code, :error_message, :facilitator_message, :created_at) RETURNING id;`, e)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Named createEntry: %w", err)
	}
	query = r.db.Rebind(query)

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		return nil, fmt.Errorf("db.Get createEntry: %w", err)
	}

	return r.GetEntry(ctx, id)
}

func (r *Repo) GetEntry(ctx context.Context, id int64) (*paymentlog.Entry, error) {
	const query = "SELECT * FROM x402_payment_logs WHERE id=$1;"

	var e paymentlog.Entry
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentlog.ErrEntryNotFound
		}
		return nil, fmt.Errorf("db.Get entry: %w", err)
	}

	return &e, nil
}

func (r *Repo) ListEntries(ctx context.Context, resourceID string, limit int) ([]paymentlog.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		entries []paymentlog.Entry
		err     error
	)
	if resourceID == "" {
		err = r.db.SelectContext(ctx, &entries, "SELECT * FROM x402_payment_logs ORDER BY id DESC LIMIT $1;", limit)
	} else {
		err = r.db.SelectContext(ctx, &entries, "SELECT * FROM x402_payment_logs WHERE resource_id=$1 ORDER BY id DESC LIMIT $2;", resourceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("db.Select entries: %w", err)
	}

	return entries, nil
}

func (r *Repo) HasPaid(ctx context.Context, resourceID, address string) (bool, error) {
	const query = `SELECT EXISTS (
	SELECT 1 FROM x402_payment_logs
	WHERE resource_id=$1 AND status=$2
	AND (normalized_address IN ($3, $4) OR payer_identifier IN ($3, $4) OR user_address=$3)
);`

	var paid bool
	if err := r.db.GetContext(ctx, &paid, query, resourceID, paymentlog.StatusVerified, address, strings.ToLower(address)); err != nil {
		return false, fmt.Errorf("db.Get hasPaid: %w", err)
	}

	return paid, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, status paymentlog.Status) error {
	const query = `UPDATE x402_payment_logs SET status=$2 WHERE id=$1 AND status=$3`

	res, err := r.db.ExecContext(ctx, query, id, status, paymentlog.StatusPending)
	if err != nil {
		return fmt.Errorf("db.Exec update status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return paymentlog.ErrNotPending
	}

	return nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}
