package main

import (
	"context"
	"sync"

	"github.com/mondb-dev/x402-wp/internal/content"
	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

type mockPaymentLog struct {
	mu      sync.Mutex
	entries []paymentlog.Entry
	ListErr error
}

func (m *mockPaymentLog) Record(ctx context.Context, e paymentlog.Entry) (*paymentlog.Entry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return &e, nil
}

func (m *mockPaymentLog) List(ctx context.Context, resourceID string, limit int) ([]paymentlog.Entry, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []paymentlog.Entry
	for _, e := range m.entries {
		if e.ResourceID == resourceID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockVerifier struct {
	VerifyAndSettleErr error
}

func (m *mockVerifier) VerifyAndSettle(ctx context.Context, req x402.PaymentRequirements, p *x402.PaymentPayload) (*x402.SettlementResult, error) {
	return nil, m.VerifyAndSettleErr
}

type mockContent struct {
	FetchObject *content.Object
	FetchErr    error
	Location    string
}

func (m *mockContent) Fetch(ctx context.Context, location string) (*content.Object, error) {
	m.Location = location
	return m.FetchObject, m.FetchErr
}
