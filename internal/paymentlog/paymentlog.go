// Package paymentlog is the append-only audit trail of payment attempts.
// Every attempt that reached the facilitator leaves exactly one entry.
package paymentlog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func New(repo paymentRepo) (*PaymentLog, error) {
	return &PaymentLog{
		repo: repo,
		now:  time.Now,
	}, nil
}

type PaymentLog struct {
	repo paymentRepo
	now  func() time.Time
}

type paymentRepo interface {
	CreateEntry(ctx context.Context, e Entry) (*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListEntries(ctx context.Context, resourceID string, limit int) ([]Entry, error)
	HasPaid(ctx context.Context, resourceID, address string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// Record appends e to the log.
func (l *PaymentLog) Record(ctx context.Context, e Entry) (*Entry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now().UTC()
	}

	entry, err := l.repo.CreateEntry(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("repo.CreateEntry: %w", err)
	}

	return entry, nil
}

func (l *PaymentLog) List(ctx context.Context, resourceID string, limit int) ([]Entry, error) {
	entries, err := l.repo.ListEntries(ctx, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("repo.ListEntries: %w", err)
	}
	return entries, nil
}

// HasPaid reports whether address has a verified payment for resourceID.
// address is matched against the normalized address, the payer identifier
// and the raw address.
func (l *PaymentLog) HasPaid(ctx context.Context, resourceID, address string) (bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return false, nil
	}

	paid, err := l.repo.HasPaid(ctx, resourceID, address)
	if err != nil {
		return false, fmt.Errorf("repo.HasPaid: %w", err)
	}
	return paid, nil
}

// UpdateStatus moves a legacy pending entry to status. Entries that are
// already verified or failed never change.
func (l *PaymentLog) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	e, err := l.repo.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("repo.GetEntry: %w", err)
	}
	if e.Status != StatusPending {
		return ErrNotPending
	}

	e.Status = status
	if err := e.Validate(); err != nil {
		return err
	}

	if err := l.repo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("repo.UpdateStatus: %w", err)
	}
	return nil
}

type Entry struct {
	ID                   int64     `db:"id" json:"id"`
	ResourceID           string    `db:"resource_id" json:"resource_id"`
	UserAddress          string    `db:"user_address" json:"user_address"`
	NormalizedAddress    string    `db:"normalized_address" json:"normalized_address"`
	Amount               string    `db:"amount" json:"amount"`
	TokenAddress         string    `db:"token_address" json:"token_address"`
	Network              string    `db:"network" json:"network"`
	TransactionHash      *string   `db:"transaction_hash" json:"transaction_hash"`
	PayerIdentifier      string    `db:"payer_identifier" json:"payer_identifier"`
	SettlementProof      *string   `db:"settlement_proof" json:"settlement_proof"`
	Status               Status    `db:"status" json:"status"`
	FacilitatorSignature *string   `db:"facilitator_signature" json:"facilitator_signature"`
	FacilitatorReference *string   `db:"facilitator_reference" json:"facilitator_reference"`
	ErrorStatus          *int      `db:"error_status" json:"error_status"`
	ErrorCode            *string   `db:"error_code" json:"error_code"`
	ErrorMessage         *string   `db:"error_message" json:"error_message"`
	FacilitatorMessage   *string   `db:"facilitator_message" json:"facilitator_message"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// Validate enforces that a verified entry carries a settlement proof.
func (e Entry) Validate() error {
	if !e.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	if e.Status == StatusVerified && (e.SettlementProof == nil || strings.TrimSpace(*e.SettlementProof) == "") {
		return ErrProofRequired
	}
	return nil
}

// SupportReference is the opaque id shown to users for a failed attempt.
func (e Entry) SupportReference() string {
	return SupportReference(e.ID)
}

func SupportReference(id int64) string {
	return fmt.Sprintf("X402-%06d", id)
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// String returns a pointer to s, or nil when s is empty. It is used for the
// nullable columns.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Int(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}
