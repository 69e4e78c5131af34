package paymentlog

import "errors"

var (
	ErrEntryNotFound = errors.New("payment log entry not found")
	ErrProofRequired = errors.New("verified entry requires a settlement proof")
	ErrNotPending    = errors.New("only pending entries can change status")
	ErrInvalidStatus = errors.New("invalid payment status")
)
