package paywall

import "errors"

var (
	ErrMisconfigured = errors.New("paywall misconfigured")
)
