package paywall

import (
	"context"

	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

type mockFacilitator struct {
	VerifyAndSettleResult *x402.SettlementResult
	VerifyAndSettleErr    error
	Calls                 int
	Requirements          x402.PaymentRequirements
}

func (m *mockFacilitator) VerifyAndSettle(ctx context.Context, req x402.PaymentRequirements, p *x402.PaymentPayload) (*x402.SettlementResult, error) {
	m.Calls++
	m.Requirements = req
	return m.VerifyAndSettleResult, m.VerifyAndSettleErr
}

type mockPaymentLog struct {
	Entries   []paymentlog.Entry
	RecordErr error
}

func (m *mockPaymentLog) Record(ctx context.Context, e paymentlog.Entry) (*paymentlog.Entry, error) {
	if m.RecordErr != nil {
		return nil, m.RecordErr
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.ID = int64(len(m.Entries) + 1)
	m.Entries = append(m.Entries, e)
	return &e, nil
}

func (m *mockPaymentLog) byStatus(status paymentlog.Status) []paymentlog.Entry {
	var out []paymentlog.Entry
	for _, e := range m.Entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}
