package mock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mondb-dev/x402-wp/internal/proof"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

func TestVerifyAndSettle(t *testing.T) {
	p := &x402.PaymentPayload{Network: "solana", Payload: json.RawMessage(`{"transaction":"abc"}`)}

	res, err := New().VerifyAndSettle(context.Background(), x402.PaymentRequirements{Amount: "1", ID: "resource-1-x"}, p)
	require.NoError(t, err)

	assert.True(t, res.Verified)
	assert.True(t, proof.Confirm(res.Settlement))
	assert.Equal(t, "resource-1-x", proof.Extract(res.Settlement).Reference)
	assert.Len(t, res.Transaction, 66)
}
