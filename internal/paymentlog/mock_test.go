package paymentlog

import (
	"context"
)

type mockPaymentRepo struct {
	Created            []Entry
	CreateEntryErr     error
	GetEntryEntry      *Entry
	GetEntryErr        error
	ListEntriesEntries []Entry
	ListEntriesErr     error
	HasPaidBool        bool
	HasPaidErr         error
	UpdateStatusErr    error
	Updated            map[int64]Status
}

func (m *mockPaymentRepo) CreateEntry(ctx context.Context, e Entry) (*Entry, error) {
	if m.CreateEntryErr != nil {
		return nil, m.CreateEntryErr
	}
	e.ID = int64(len(m.Created) + 1)
	m.Created = append(m.Created, e)
	return &e, nil
}
func (m *mockPaymentRepo) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return m.GetEntryEntry, m.GetEntryErr
}
func (m *mockPaymentRepo) ListEntries(ctx context.Context, resourceID string, limit int) ([]Entry, error) {
	return m.ListEntriesEntries, m.ListEntriesErr
}
func (m *mockPaymentRepo) HasPaid(ctx context.Context, resourceID, address string) (bool, error) {
	return m.HasPaidBool, m.HasPaidErr
}
func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	if m.Updated == nil {
		m.Updated = map[int64]Status{}
	}
	m.Updated[id] = status
	return nil
}
