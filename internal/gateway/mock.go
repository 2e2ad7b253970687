package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danielodicho/lumo/internal/models"
)

// Mock is an in-memory ChargeGateway for tests and local development. Charges
// succeed unless the customer has been marked as failing. All methods are safe
// for concurrent use.
type Mock struct {
	mu sync.Mutex

	customers   map[string]string // customer id -> name
	failCharges map[string]error  // customer id -> forced charge failure
	charges     []ChargeRequest
	nextID      int
}

var _ ChargeGateway = (*Mock)(nil)

// NewMock creates an empty mock gateway.
func NewMock() *Mock {
	return &Mock{
		customers:   make(map[string]string),
		failCharges: make(map[string]error),
	}
}

// FailChargesFor makes CreateCharge fail for the given customer. A nil cause
// uses a generic declined error.
func (m *Mock) FailChargesFor(customerID string, cause error) {
	if cause == nil {
		cause = errors.New("card declined")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCharges[customerID] = cause
}

// Charges returns a copy of every charge request received, in arrival order.
func (m *Mock) Charges() []ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChargeRequest, len(m.charges))
	copy(out, m.charges)
	return out
}

// ChargeCount returns how many CreateCharge calls were received.
func (m *Mock) ChargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charges)
}

func (m *Mock) CreateCustomer(_ context.Context, name string, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("cus_mock_%d", m.nextID)
	m.customers[id] = name
	return id, nil
}

func (m *Mock) UpdateCustomerMetadata(_ context.Context, customerID string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[customerID]; !ok {
		return &Error{Op: "update customer", Err: errors.New("no such customer")}
	}
	return nil
}

func (m *Mock) DeleteCustomer(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.customers, customerID)
	return nil
}

func (m *Mock) AttachPaymentMethod(_ context.Context, customerID, paymentMethodID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[customerID]; !ok {
		return "", &Error{Op: "attach payment method", Err: errors.New("no such customer")}
	}
	return paymentMethodID, nil
}

func (m *Mock) CreateCharge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = append(m.charges, req)
	if cause, ok := m.failCharges[req.CustomerID]; ok {
		return nil, &Error{Op: "create charge", Code: "card_declined", Err: cause}
	}
	m.nextID++
	return &ChargeResult{
		ChargeID: fmt.Sprintf("pi_mock_%d", m.nextID),
		Status:   "succeeded",
	}, nil
}

func (m *Mock) PaymentMethodDisplay(_ context.Context, _ string) (*models.Card, error) {
	return &models.Card{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030}, nil
}
