package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mondb-dev/x402-wp/internal/paymentlog"
)

const columns = `id, resource_id, user_address, normalized_address, amount, token_address, network,
transaction_hash, payer_identifier, settlement_proof, status, facilitator_signature, facilitator_reference,
error_status, error_code, error_message, facilitator_message, created_at`

func New(dbFile string) (*Repo, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("must set db_file")
	}
	if _, err := os.Stat(dbFile); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(dbFile)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, err
	}

	r := Repo{
		dbFile: dbFile,
		db:     db,
	}

	if err := r.createSchema(); err != nil {
		return nil, err
	}

	return &r, nil
}

type Repo struct {
	dbFile string
	db     *sql.DB
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS x402_payment_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
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
    created_at DATETIME NOT NULL
);
	CREATE INDEX IF NOT EXISTS idx_logs_resource ON x402_payment_logs(resource_id);
	CREATE INDEX IF NOT EXISTS idx_logs_normalized ON x402_payment_logs(normalized_address);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return err
	}

	return nil
}

func (r *Repo) CreateEntry(ctx context.Context, e paymentlog.Entry) (*paymentlog.Entry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	stmt, err := r.db.PrepareContext(ctx, `INSERT INTO x402_payment_logs (resource_id, user_address, normalized_address, amount,
token_address, network, transaction_hash, payer_identifier, settlement_proof, status, facilitator_signature,
facilitator_reference, error_status, error_code, error_message, facilitator_message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx,
		e.ResourceID,
		e.UserAddress,
		e.NormalizedAddress,
		e.Amount,
		e.TokenAddress,
		e.Network,
		e.TransactionHash,
		e.PayerIdentifier,
		e.SettlementProof,
		string(e.Status),
		e.FacilitatorSignature,
		e.FacilitatorReference,
		e.ErrorStatus,
		e.ErrorCode,
		e.ErrorMessage,
		e.FacilitatorMessage,
		e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return r.GetEntry(ctx, id)
}

func (r *Repo) GetEntry(ctx context.Context, id int64) (*paymentlog.Entry, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+columns+" FROM x402_payment_logs WHERE id = ?", id)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, paymentlog.ErrEntryNotFound
		}
		return nil, err
	}

	return e, nil
}

func (r *Repo) ListEntries(ctx context.Context, resourceID string, limit int) ([]paymentlog.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if resourceID == "" {
		rows, err = r.db.QueryContext(ctx, "SELECT "+columns+" FROM x402_payment_logs ORDER BY id DESC LIMIT ?", limit)
	} else {
		rows, err = r.db.QueryContext(ctx, "SELECT "+columns+" FROM x402_payment_logs WHERE resource_id = ? ORDER BY id DESC LIMIT ?", resourceID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []paymentlog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}

func (r *Repo) HasPaid(ctx context.Context, resourceID, address string) (bool, error) {
	const query = `SELECT COUNT(1) FROM x402_payment_logs
WHERE resource_id = ? AND status = ?
AND (normalized_address IN (?, ?) OR payer_identifier IN (?, ?) OR user_address = ?)`

	lower := strings.ToLower(address)

	var n int
	err := r.db.QueryRowContext(ctx, query,
		resourceID, string(paymentlog.StatusVerified),
		address, lower, address, lower, address,
	).Scan(&n)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, status paymentlog.Status) error {
	res, err := r.db.ExecContext(ctx, "UPDATE x402_payment_logs SET status = ? WHERE id = ? AND status = ?",
		string(status), id, string(paymentlog.StatusPending))
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return paymentlog.ErrNotPending
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*paymentlog.Entry, error) {
	var (
		e           paymentlog.Entry
		status      string
		errorStatus sql.NullInt64
	)

	err := s.Scan(
		&e.ID,
		&e.ResourceID,
		&e.UserAddress,
		&e.NormalizedAddress,
		&e.Amount,
		&e.TokenAddress,
		&e.Network,
		&e.TransactionHash,
		&e.PayerIdentifier,
		&e.SettlementProof,
		&status,
		&e.FacilitatorSignature,
		&e.FacilitatorReference,
		&errorStatus,
		&e.ErrorCode,
		&e.ErrorMessage,
		&e.FacilitatorMessage,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = paymentlog.Status(status)
	if errorStatus.Valid {
		v := int(errorStatus.Int64)
		e.ErrorStatus = &v
	}

	return &e, nil
}
