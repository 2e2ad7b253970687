package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielodicho/lumo/internal/calculator"
	"github.com/danielodicho/lumo/internal/gateway"
	"github.com/danielodicho/lumo/internal/ledger"
	"github.com/danielodicho/lumo/internal/metrics"
	"github.com/danielodicho/lumo/internal/models"
	"github.com/danielodicho/lumo/internal/storage"
	"github.com/danielodicho/lumo/internal/storage/sqlite"
)

type fixture struct {
	store   storage.Store
	ledger  *ledger.Ledger
	gateway *gateway.Mock
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	l := ledger.New(store)
	gw := gateway.NewMock()
	return &fixture{
		store:   store,
		ledger:  l,
		gateway: gw,
		orch:    New(store, l, gw),
	}
}

func (f *fixture) addParticipant(t *testing.T, name, pledge string) *models.Participant {
	t.Helper()
	ctx := context.Background()
	customerID, err := f.gateway.CreateCustomer(ctx, name, nil)
	require.NoError(t, err)

	p := &models.Participant{
		Name:                   name,
		PledgedAmount:          decimal.RequireFromString(pledge),
		GatewayCustomerID:      customerID,
		DefaultPaymentMethodID: "pm_" + name,
	}
	require.NoError(t, f.store.CreateParticipant(ctx, p))
	return p
}

func (f *fixture) balance(t *testing.T, id string) string {
	t.Helper()
	balance, err := f.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return balance.StringFixed(2)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProcessTransaction_AllSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addParticipant(t, "Alice", "10.00")
	bob := f.addParticipant(t, "Bob", "10.00")

	txn, err := f.orch.ProcessTransaction(ctx, Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("15.00"),
		ParticipantIDs: []string{alice.ID, bob.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionSuccess, txn.Status)
	assert.NotEmpty(t, txn.GroupTransactionID)
	assert.True(t, txn.TotalAmount.Equal(dec("15.00")))
	require.Len(t, txn.Payments, 2)
	for i, want := range []*models.Participant{alice, bob} {
		payment := txn.Payments[i]
		assert.Equal(t, want.ID, payment.ParticipantID)
		assert.Equal(t, want.Name, payment.ParticipantName)
		assert.Equal(t, "7.50", payment.Amount.StringFixed(2))
		assert.Equal(t, models.PaymentSucceeded, payment.Status)
		assert.NotEmpty(t, payment.ChargeID)
	}

	assert.Equal(t, "2.50", f.balance(t, alice.ID))
	assert.Equal(t, "2.50", f.balance(t, bob.ID))

	// The record is durable and queryable by its group id.
	persisted, err := f.store.TransactionByGroupID(ctx, txn.GroupTransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSuccess, persisted.Status)
	require.Len(t, persisted.Payments, 2)

	charges := f.gateway.Charges()
	require.Len(t, charges, 2)
	for _, c := range charges {
		assert.Equal(t, int64(750), c.AmountMinorUnits)
		assert.Equal(t, "Cafe", c.MerchantName)
		assert.Equal(t, txn.GroupTransactionID, c.GroupTransactionID)
		assert.Equal(t, "Split $15.00 equally among 2 participants ($7.50 each)", c.SplitInfo)
	}
}

func TestProcessTransaction_PartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addParticipant(t, "Alice", "10.00")
	bob := f.addParticipant(t, "Bob", "10.00")
	f.gateway.FailChargesFor(bob.GatewayCustomerID, errors.New("insufficient funds upstream"))

	_, err := f.orch.ProcessTransaction(ctx, Request{
		GroupTransactionID: "grp-partial",
		MerchantName:       "Cafe",
		TotalAmount:        dec("15.00"),
		ParticipantIDs:     []string{alice.ID, bob.ID},
	})

	var partialErr *PartialFailureError
	require.ErrorAs(t, err, &partialErr)
	require.Len(t, partialErr.Failed, 1)
	assert.Equal(t, "Bob", partialErr.Failed[0].ParticipantName)
	assert.Contains(t, partialErr.Error(), "Bob")

	// Succeeded charge ids are exposed for out-of-band refund tooling.
	require.Len(t, partialErr.Succeeded, 1)
	assert.Equal(t, alice.ID, partialErr.Succeeded[0].ParticipantID)
	assert.NotEmpty(t, partialErr.Succeeded[0].ChargeID)

	// Alice's charge landed and her balance reflects it; Bob is untouched.
	assert.Equal(t, "2.50", f.balance(t, alice.ID))
	assert.Equal(t, "10.00", f.balance(t, bob.ID))

	// Both charges were attempted: one failure does not cancel siblings.
	assert.Equal(t, 2, f.gateway.ChargeCount())

	// No transaction record is persisted on partial failure.
	_, err = f.store.TransactionByGroupID(ctx, "grp-partial")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessTransaction_AllChargesFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addParticipant(t, "Alice", "10.00")
	bob := f.addParticipant(t, "Bob", "10.00")
	f.gateway.FailChargesFor(alice.GatewayCustomerID, nil)
	f.gateway.FailChargesFor(bob.GatewayCustomerID, nil)

	_, err := f.orch.ProcessTransaction(ctx, Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("15.00"),
		ParticipantIDs: []string{alice.ID, bob.ID},
	})

	var partialErr *PartialFailureError
	require.ErrorAs(t, err, &partialErr)
	assert.Len(t, partialErr.Failed, 2)
	assert.Empty(t, partialErr.Succeeded)
	assert.Equal(t, "10.00", f.balance(t, alice.ID))
	assert.Equal(t, "10.00", f.balance(t, bob.ID))
}

func TestProcessTransaction_PreflightInsufficientPooledFunds(t *testing.T) {
	f := newFixture(t)
	alice := f.addParticipant(t, "Alice", "5.00")
	bob := f.addParticipant(t, "Bob", "5.00")

	_, err := f.orch.ProcessTransaction(context.Background(), Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("15.00"),
		ParticipantIDs: []string{alice.ID, bob.ID},
	})

	var fundsErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Empty(t, fundsErr.ParticipantID)

	// No gateway call and no state mutation on a validation failure.
	assert.Zero(t, f.gateway.ChargeCount())
	assert.Equal(t, "5.00", f.balance(t, alice.ID))
	assert.Equal(t, "5.00", f.balance(t, bob.ID))
}

func TestProcessTransaction_PreflightIndividualShortfall(t *testing.T) {
	f := newFixture(t)
	// Pool covers the total, but Bob cannot cover his own share.
	alice := f.addParticipant(t, "Alice", "20.00")
	bob := f.addParticipant(t, "Bob", "5.00")

	_, err := f.orch.ProcessTransaction(context.Background(), Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("15.00"),
		ParticipantIDs: []string{alice.ID, bob.ID},
	})

	var fundsErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, bob.ID, fundsErr.ParticipantID)
	assert.Zero(t, f.gateway.ChargeCount())
	assert.Equal(t, "20.00", f.balance(t, alice.ID))
	assert.Equal(t, "5.00", f.balance(t, bob.ID))
}

func TestProcessTransaction_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	alice := f.addParticipant(t, "Alice", "10.00")
	ctx := context.Background()

	_, err := f.orch.ProcessTransaction(ctx, Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("0"),
		ParticipantIDs: []string{alice.ID},
	})
	assert.ErrorIs(t, err, calculator.ErrInvalidAmount)

	_, err = f.orch.ProcessTransaction(ctx, Request{
		MerchantName: "Cafe",
		TotalAmount:  dec("10.00"),
	})
	assert.ErrorIs(t, err, calculator.ErrEmptyParticipants)

	_, err = f.orch.ProcessTransaction(ctx, Request{
		TotalAmount:    dec("10.00"),
		ParticipantIDs: []string{alice.ID},
	})
	assert.ErrorIs(t, err, ErrMissingMerchant)

	_, err = f.orch.ProcessTransaction(ctx, Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("10.00"),
		ParticipantIDs: []string{"missing"},
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Zero(t, f.gateway.ChargeCount())
}

func TestProcessTransaction_DuplicateParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addParticipant(t, "Alice", "10.00")

	// Listing Alice twice would double-count her pledge in the pooled sum
	// and charge her card twice for a total beyond her balance.
	_, err := f.orch.ProcessTransaction(ctx, Request{
		GroupTransactionID: "grp-dup",
		MerchantName:       "Cafe",
		TotalAmount:        dec("14.00"),
		ParticipantIDs:     []string{alice.ID, alice.ID},
	})
	require.ErrorIs(t, err, calculator.ErrDuplicateParticipant)

	assert.Zero(t, f.gateway.ChargeCount())
	assert.Equal(t, "10.00", f.balance(t, alice.ID))
	_, err = f.store.TransactionByGroupID(ctx, "grp-dup")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessTransaction_ShareBelowMinimum(t *testing.T) {
	f := newFixture(t)
	alice := f.addParticipant(t, "Alice", "10.00")
	bob := f.addParticipant(t, "Bob", "10.00")
	charlie := f.addParticipant(t, "Charlie", "10.00")

	// 0.90 across three participants is 30 minor units a head.
	_, err := f.orch.ProcessTransaction(context.Background(), Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("0.90"),
		ParticipantIDs: []string{alice.ID, bob.ID, charlie.ID},
	})

	var minErr *calculator.BelowMinimumChargeError
	require.ErrorAs(t, err, &minErr)
	assert.Zero(t, f.gateway.ChargeCount())
}

func TestProcessTransaction_NoPaymentMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addParticipant(t, "Alice", "10.00")

	bare := &models.Participant{
		Name:              "Bare",
		PledgedAmount:     dec("10.00"),
		GatewayCustomerID: "cus_bare",
	}
	require.NoError(t, f.store.CreateParticipant(ctx, bare))

	_, err := f.orch.ProcessTransaction(ctx, Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("10.00"),
		ParticipantIDs: []string{alice.ID, bare.ID},
	})

	var pmErr *NoPaymentMethodError
	require.ErrorAs(t, err, &pmErr)
	assert.Equal(t, bare.ID, pmErr.ParticipantID)
	assert.Zero(t, f.gateway.ChargeCount())
}

func TestProcessTransaction_IdempotentReinvocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addParticipant(t, "Alice", "10.00")
	bob := f.addParticipant(t, "Bob", "10.00")

	req := Request{
		GroupTransactionID: "grp-idem",
		MerchantName:       "Cafe",
		TotalAmount:        dec("10.00"),
		ParticipantIDs:     []string{alice.ID, bob.ID},
	}

	first, err := f.orch.ProcessTransaction(ctx, req)
	require.NoError(t, err)

	second, err := f.orch.ProcessTransaction(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Re-invocation recovered the record without charging anyone again.
	assert.Equal(t, 2, f.gateway.ChargeCount())
	assert.Equal(t, "5.00", f.balance(t, alice.ID))
}

// brokenRecoveryStore fails group-id lookups with a non-not-found error.
type brokenRecoveryStore struct {
	storage.Store
}

func (s *brokenRecoveryStore) TransactionByGroupID(context.Context, string) (*models.Transaction, error) {
	return nil, errors.New("database is locked")
}

func TestProcessTransaction_RecoveryLookupFailureCountsAborted(t *testing.T) {
	f := newFixture(t)
	alice := f.addParticipant(t, "Alice", "10.00")

	aborted := metrics.TransactionsTotal.WithLabelValues(metrics.OutcomeAborted)
	before := testutil.ToFloat64(aborted)

	orch := New(&brokenRecoveryStore{Store: f.store}, f.ledger, f.gateway)
	_, err := orch.ProcessTransaction(context.Background(), Request{
		GroupTransactionID: "grp-recover",
		MerchantName:       "Cafe",
		TotalAmount:        dec("10.00"),
		ParticipantIDs:     []string{alice.ID},
	})
	require.Error(t, err)

	assert.Zero(t, f.gateway.ChargeCount())
	assert.Equal(t, before+1, testutil.ToFloat64(aborted))
}

// failingStore wraps a Store and rejects transaction writes.
type failingStore struct {
	storage.Store
}

func (s *failingStore) SaveTransaction(context.Context, *models.Transaction) error {
	return errors.New("disk full")
}

func TestProcessTransaction_RecordPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addParticipant(t, "Alice", "10.00")
	bob := f.addParticipant(t, "Bob", "10.00")

	orch := New(&failingStore{Store: f.store}, f.ledger, f.gateway)
	_, err := orch.ProcessTransaction(ctx, Request{
		GroupTransactionID: "grp-persist",
		MerchantName:       "Cafe",
		TotalAmount:        dec("15.00"),
		ParticipantIDs:     []string{alice.ID, bob.ID},
	})

	var persistErr *RecordPersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "grp-persist", persistErr.Transaction.GroupTransactionID)
	require.Len(t, persistErr.Transaction.Payments, 2)

	// Money moved: the debits stand even though the record write failed.
	assert.Equal(t, "2.50", f.balance(t, alice.ID))
	assert.Equal(t, "2.50", f.balance(t, bob.ID))
}

func TestProcessTransaction_SumWithinTruncationBound(t *testing.T) {
	f := newFixture(t)
	ids := []string{}
	for _, name := range []string{"A", "B", "C"} {
		ids = append(ids, f.addParticipant(t, name, "50.00").ID)
	}

	txn, err := f.orch.ProcessTransaction(context.Background(), Request{
		MerchantName:   "Cafe",
		TotalAmount:    dec("10.00"),
		ParticipantIDs: ids,
	})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, payment := range txn.Payments {
		sum = sum.Add(payment.Amount)
	}
	// 10.00 / 3 floors to 3.33 a head; the remaining cent is dropped.
	assert.Equal(t, "9.99", sum.StringFixed(2))
	assert.False(t, sum.GreaterThan(txn.TotalAmount))
}
