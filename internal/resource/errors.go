package resource

import "errors"

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrDuplicateID      = errors.New("duplicate resource id")
	ErrNoRecipient      = errors.New("no valid recipient for network")
	ErrInvalidAsset     = errors.New("invalid token address for network")
	ErrUnknownDecimals  = errors.New("token decimals unknown")
)
