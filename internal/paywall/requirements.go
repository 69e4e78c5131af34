package paywall

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mondb-dev/x402-wp/internal/address"
	"github.com/mondb-dev/x402-wp/internal/resource"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

const (
	DefaultTimeoutSeconds = 300

	defaultTokenName    = "USD Coin"
	defaultTokenVersion = "2"
)

// BuildRequirements turns a resource's payment terms into the x402
// requirements a client has to satisfy.
func BuildRequirements(cfg *resource.PaywallConfig, timeoutSeconds int) x402.PaymentRequirements {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}

	req := x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           cfg.Network,
		PayTo:             cfg.Recipient,
		Amount:            cfg.Amount,
		MaxAmountRequired: cfg.Amount,
		Asset:             cfg.TokenAddress,
		Resource:          cfg.ResourceURL,
		Description:       cfg.Description,
		MimeType:          cfg.MimeType,
		Timeout:           timeoutSeconds,
		MaxTimeoutSeconds: timeoutSeconds,
		ID:                fmt.Sprintf("resource-%s-%s", cfg.ResourceID, uuid.NewString()),
	}

	if address.FamilyOf(cfg.Network) == address.FamilyEVM {
		extra := &x402.Extra{Name: cfg.TokenName, Version: cfg.TokenVersion}
		if extra.Name == "" {
			extra.Name = defaultTokenName
		}
		if extra.Version == "" {
			extra.Version = defaultTokenVersion
		}
		req.Extra = extra
	}

	return req
}

// PaymentRequired wraps requirements in the 402 response body.
func PaymentRequired(reason string, reqs ...x402.PaymentRequirements) *x402.PaymentRequiredResponse {
	if reason == "" {
		reason = "X-PAYMENT header is required"
	}
	return &x402.PaymentRequiredResponse{
		X402Version: x402.Version,
		Error:       reason,
		Accepts:     reqs,
	}
}
