package amount

import "errors"

var (
	ErrInvalidAmountFormat = errors.New("invalid amount format")
	ErrPrecisionExceeded   = errors.New("amount precision exceeds token decimals")
	ErrAmountNotPositive   = errors.New("amount must be greater than zero")
	ErrUnknownFormat       = errors.New("unknown amount format")
	ErrDecimalsOutOfRange  = errors.New("token decimals out of range")
)
