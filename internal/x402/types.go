// Package x402 holds the wire types exchanged with paying clients and the
// facilitator, the payment header codec and the payment error taxonomy.
package x402

import (
	"encoding/json"
)

const (
	Version     = 1
	SchemeExact = "exact"

	HeaderPayment         = "X-Payment"
	HeaderPaymentResponse = "X-Payment-Response"
	HeaderPaymentSession  = "X-Payment-Session"
)

// PaymentRequirements describes what a client has to pay for a resource.
// Amount and MaxAmountRequired are atomic units.
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	PayTo             string `json:"payTo"`
	Amount            string `json:"amount"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Asset             string `json:"asset"`
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	MimeType          string `json:"mimeType"`
	Timeout           int    `json:"timeout"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Extra             *Extra `json:"extra,omitempty"`
	ID                string `json:"id"`
}

// Extra carries the EIP-712 domain of the token for typed-signature schemes.
type Extra struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PaymentRequiredResponse is the 402 response body.
type PaymentRequiredResponse struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// PaymentPayload is the decoded X-Payment header.
type PaymentPayload struct {
	X402Version int             `json:"x402Version" validate:"gte=0"`
	Scheme      string          `json:"scheme" validate:"required"`
	Network     string          `json:"network" validate:"required"`
	Payload     json.RawMessage `json:"payload" validate:"required"`

	evm *EVMPayload
	svm *SVMPayload
}

// EVM returns the decoded EVM sub-payload, nil for SVM payments.
func (p *PaymentPayload) EVM() *EVMPayload { return p.evm }

// SVM returns the decoded SVM sub-payload, nil for EVM payments.
func (p *PaymentPayload) SVM() *SVMPayload { return p.svm }

// Signer is the normalized address that signed an EVM authorization. It is
// empty for SVM payments, whose payer is only known after settlement.
func (p *PaymentPayload) Signer() string {
	if p == nil || p.evm == nil {
		return ""
	}
	return p.evm.Authorization.from
}

type EVMPayload struct {
	Signature     string        `json:"signature" validate:"required"`
	Authorization Authorization `json:"authorization"`
}

// Authorization is an EIP-3009 transferWithAuthorization message.
type Authorization struct {
	From        string `json:"from" validate:"required"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`

	from string
}

type SVMPayload struct {
	Transaction string `json:"transaction" validate:"required"`
}

// SettlementResult is what the facilitator reports after verify and settle.
// Settlement is the raw settlement object including its proof.
type SettlementResult struct {
	Verified    bool            `json:"verified"`
	Payer       string          `json:"payer,omitempty"`
	Transaction string          `json:"transaction,omitempty"`
	Network     string          `json:"network,omitempty"`
	Settlement  json.RawMessage `json:"settlement,omitempty"`
}

// PaymentResponse is sent back in the X-Payment-Response header.
type PaymentResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}
