package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielodicho/lumo/internal/gateway"
	"github.com/danielodicho/lumo/internal/ledger"
	"github.com/danielodicho/lumo/internal/storage"
	"github.com/danielodicho/lumo/internal/storage/sqlite"
)

func newService(t *testing.T) (*Participants, *gateway.Mock, storage.Store) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gw := gateway.NewMock()
	return NewParticipants(store, ledger.New(store), gw), gw, store
}

func TestCreateParticipant(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx, "Alice", decimal.RequireFromString("10.00"), "pm_123")
	require.NoError(t, err)
	require.NotNil(t, view.Card)
	assert.Equal(t, "visa", view.Card.Brand)

	p := view.Participant
	assert.NotEmpty(t, p.ID)
	assert.NotEmpty(t, p.GatewayCustomerID)
	assert.Equal(t, "pm_123", p.DefaultPaymentMethodID)

	persisted, err := store.GetParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, persisted.PledgedAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestCreateParticipant_Validation(t *testing.T) {
	svc, gw, _ := newService(t)
	ctx := context.Background()
	ten := decimal.NewFromInt(10)

	_, err := svc.Create(ctx, "", ten, "pm_123")
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = svc.Create(ctx, "Alice", decimal.Zero, "pm_123")
	assert.ErrorIs(t, err, ErrInvalidPledge)

	_, err = svc.Create(ctx, "Alice", ten, "")
	assert.ErrorIs(t, err, ErrMissingPaymentMethod)

	// Validation failures never reach the gateway.
	assert.Zero(t, gw.ChargeCount())
}

// failingAttachGateway rejects payment method attachment.
type failingAttachGateway struct {
	*gateway.Mock
	deleted []string
}

func (g *failingAttachGateway) AttachPaymentMethod(context.Context, string, string) (string, error) {
	return "", &gateway.Error{Op: "attach payment method", Err: errors.New("invalid method")}
}

func (g *failingAttachGateway) DeleteCustomer(ctx context.Context, customerID string) error {
	g.deleted = append(g.deleted, customerID)
	return g.Mock.DeleteCustomer(ctx, customerID)
}

func TestCreateParticipant_CleansUpCustomerOnAttachFailure(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gw := &failingAttachGateway{Mock: gateway.NewMock()}
	svc := NewParticipants(store, ledger.New(store), gw)

	_, err = svc.Create(context.Background(), "Alice", decimal.NewFromInt(10), "pm_bad")
	require.Error(t, err)

	var gwErr *gateway.Error
	assert.ErrorAs(t, err, &gwErr)
	assert.Len(t, gw.deleted, 1, "orphaned gateway customer must be cleaned up")

	participants, err := store.ListParticipants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, participants)
}

func TestListParticipants_WithCards(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Alice", decimal.NewFromInt(10), "pm_a")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Bob", decimal.NewFromInt(5), "pm_b")
	require.NoError(t, err)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	names := make(map[string]bool)
	for _, v := range views {
		names[v.Participant.Name] = true
		require.NotNil(t, v.Card, "card for %s", v.Participant.Name)
		assert.Equal(t, "4242", v.Card.Last4)
	}
	assert.True(t, names["Alice"] && names["Bob"])
}

func TestAddPaymentMethod(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx, "Alice", decimal.NewFromInt(10), "pm_old")
	require.NoError(t, err)

	p, err := svc.AddPaymentMethod(ctx, view.Participant.ID, "pm_new")
	require.NoError(t, err)
	assert.Equal(t, "pm_new", p.DefaultPaymentMethodID)

	persisted, err := store.GetParticipant(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "pm_new", persisted.DefaultPaymentMethodID)

	_, err = svc.AddPaymentMethod(ctx, p.ID, "")
	assert.ErrorIs(t, err, ErrMissingPaymentMethod)

	_, err = svc.AddPaymentMethod(ctx, "missing", "pm_new")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdatePledge(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx, "Alice", decimal.NewFromInt(10), "pm_a")
	require.NoError(t, err)

	p, err := svc.UpdatePledge(ctx, view.Participant.ID, decimal.RequireFromString("25.00"))
	require.NoError(t, err)
	assert.Equal(t, "25.00", p.PledgedAmount.StringFixed(2))

	_, err = svc.UpdatePledge(ctx, view.Participant.ID, decimal.RequireFromString("-5"))
	assert.Error(t, err)
}

func TestDeleteParticipant(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx, "Alice", decimal.NewFromInt(10), "pm_a")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, view.Participant.ID))
	_, err = store.GetParticipant(ctx, view.Participant.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), storage.ErrNotFound)
}
