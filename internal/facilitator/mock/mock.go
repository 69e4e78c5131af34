// Package mock is a facilitator for local development. It accepts every
// structurally valid payment and returns a settlement carrying a proof, so
// the whole paywall flow can be exercised without a chain.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mondb-dev/x402-wp/internal/x402"
)

func New() *Client {
	return &Client{}
}

type Client struct {
}

func (c *Client) VerifyAndSettle(ctx context.Context, req x402.PaymentRequirements, p *x402.PaymentPayload) (*x402.SettlementResult, error) {
	sum := sha256.Sum256(p.Payload)
	tx := "0x" + hex.EncodeToString(sum[:])

	settlement, err := json.Marshal(map[string]any{
		"transaction": tx,
		"network":     p.Network,
		"proof": map[string]any{
			"signature": "0xmock" + hex.EncodeToString(sum[:8]),
			"payload": map[string]any{
				"payTo":  req.PayTo,
				"amount": req.Amount,
				"asset":  req.Asset,
			},
			"reference": req.ID,
		},
	})
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindUnexpectedError, "could not build settlement", err)
	}

	return &x402.SettlementResult{
		Verified:    true,
		Payer:       p.Signer(),
		Transaction: tx,
		Network:     p.Network,
		Settlement:  settlement,
	}, nil
}
