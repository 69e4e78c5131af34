package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payer = "0x857b06519E91e3A54538791bDbb0E22373e36b66"

func evmEnvelope(t *testing.T, scheme, from, signature string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"x402Version": 1,
		"scheme":      scheme,
		"network":     "base-mainnet",
		"payload": map[string]any{
			"signature": signature,
			"authorization": map[string]any{
				"from":        from,
				"to":          "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				"value":       "2500000",
				"validAfter":  "0",
				"validBefore": "1999999999",
				"nonce":       "0x01",
			},
		},
	})
	require.NoError(t, err)
	return string(b)
}

func TestDecodeHeaderEVM(t *testing.T) {
	raw := evmEnvelope(t, "exact", payer, "0xsig")

	var tests = []struct {
		name  string
		value string
	}{
		{"std base64", base64.StdEncoding.EncodeToString([]byte(raw))},
		{"url base64", base64.URLEncoding.EncodeToString([]byte(raw))},
		{"raw base64", base64.RawStdEncoding.EncodeToString([]byte(raw))},
		{"plain json", raw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeHeader(tt.value)
			require.NoError(t, err)

			assert.Equal(t, "exact", p.Scheme)
			assert.Equal(t, "base-mainnet", p.Network)
			assert.Equal(t, "0x857b06519e91e3a54538791bdbb0e22373e36b66", p.Signer())
			require.NotNil(t, p.EVM())
			assert.Equal(t, "2500000", p.EVM().Authorization.Value)
			assert.Nil(t, p.SVM())
		})
	}
}

func TestDecodeHeaderSVM(t *testing.T) {
	raw := `{"x402Version":1,"scheme":"exact","network":"solana","payload":{"transaction":"AQAAAA=="}}`

	p, err := DecodeHeader(base64.StdEncoding.EncodeToString([]byte(raw)))
	require.NoError(t, err)

	require.NotNil(t, p.SVM())
	assert.Equal(t, "AQAAAA==", p.SVM().Transaction)
	assert.Empty(t, p.Signer())
}

func TestDecodeHeaderErrors(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	var tests = []struct {
		name  string
		value string
		err   error
	}{
		{"empty", "", ErrInvalidHeader},
		{"garbage", "not a header!", ErrInvalidHeader},
		{"json array", enc(`[1,2]`), ErrInvalidHeader},
		{"missing scheme", enc(`{"network":"base","payload":{}}`), ErrInvalidHeader},
		{"missing payload", enc(`{"scheme":"exact","network":"base"}`), ErrInvalidHeader},
		{"upto scheme", enc(evmEnvelope(t, "upto", payer, "0xsig")), ErrUnsupportedScheme},
		{"uppercase scheme", enc(evmEnvelope(t, "EXACT", payer, "0xsig")), ErrUnsupportedScheme},
		{"padded scheme", enc(evmEnvelope(t, " exact", payer, "0xsig")), ErrUnsupportedScheme},
		{"short from", enc(evmEnvelope(t, "exact", "0x123", "0xsig")), ErrInvalidPayer},
		{"missing signature", enc(evmEnvelope(t, "exact", payer, "")), ErrInvalidPayload},
		{"missing from", enc(evmEnvelope(t, "exact", "", "0xsig")), ErrInvalidPayload},
		{"svm without transaction", enc(`{"scheme":"exact","network":"solana-devnet","payload":{"transaction":""}}`), ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeHeader(tt.value)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

func TestEncodeHeaderRoundTrip(t *testing.T) {
	in := PaymentPayload{
		X402Version: 1,
		Scheme:      SchemeExact,
		Network:     "solana",
		Payload:     json.RawMessage(`{"transaction":"abc"}`),
	}

	v, err := EncodeHeader(in)
	require.NoError(t, err)

	out, err := DecodeHeader(v)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.SVM().Transaction)
}

func TestEncodePaymentResponse(t *testing.T) {
	v := EncodePaymentResponse(PaymentResponse{Success: true, Transaction: "0xdeadbeef", Network: "base"})

	b, err := base64.StdEncoding.DecodeString(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"transaction":"0xdeadbeef","network":"base"}`, string(b))
}

func TestPaymentError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	pe := NewPaymentError(KindFacilitatorError, "facilitator unavailable", cause)

	assert.Equal(t, http.StatusBadGateway, pe.Status)
	assert.Equal(t, "facilitator_error", pe.ErrorCode())
	assert.ErrorIs(t, pe, cause)
	assert.Contains(t, pe.Error(), "dial tcp")

	wrapped := errors.Join(errors.New("handle"), pe)
	got, ok := AsPaymentError(wrapped)
	require.True(t, ok)
	assert.Same(t, pe, got)
	assert.Equal(t, KindFacilitatorError, KindOf(wrapped))
	assert.Equal(t, KindUnexpectedError, KindOf(cause))

	pe.Code = "insufficient_funds"
	assert.Equal(t, "insufficient_funds", pe.ErrorCode())
}

func TestKindStatus(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, KindPaymentRequired.Status())
	assert.Equal(t, http.StatusBadRequest, KindValidationError.Status())
	assert.Equal(t, http.StatusInternalServerError, KindUnexpectedError.Status())
}
