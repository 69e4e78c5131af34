package x402

import "errors"

var (
	ErrInvalidHeader     = errors.New("invalid payment header")
	ErrUnsupportedScheme = errors.New("unsupported payment scheme")
	ErrInvalidPayer      = errors.New("invalid payer address")
	ErrInvalidPayload    = errors.New("invalid payment payload")
)
