package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/danielodicho/lumo/internal/models"
)

const statementDescriptor = "LUMO SPLIT PAY"

// StripeGateway implements ChargeGateway against the Stripe API. All calls go
// through a circuit breaker so a processor outage fails fast instead of
// stacking up in-flight requests.
type StripeGateway struct {
	api     *client.API
	breaker *gobreaker.CircuitBreaker
}

// Ensure StripeGateway implements ChargeGateway
var _ ChargeGateway = (*StripeGateway)(nil)

// NewStripeGateway creates a gateway backed by the given secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 3,
		Interval:    2 * time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.5)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Gateway circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &StripeGateway{api: api, breaker: breaker}
}

// execute runs fn through the breaker and normalizes failures into *Error.
func (g *StripeGateway) execute(op string, fn func() (any, error)) (any, error) {
	result, err := g.breaker.Execute(fn)
	if err != nil {
		return nil, wrapStripeErr(op, err)
	}
	return result, nil
}

func wrapStripeErr(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &Error{Op: op, Code: string(stripeErr.Code), Err: err}
	}
	return &Error{Op: op, Err: err}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{Name: stripe.String(name)}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	result, err := g.execute("create customer", func() (any, error) {
		return g.api.Customers.New(params)
	})
	if err != nil {
		return "", err
	}
	cust := result.(*stripe.Customer)
	slog.Debug("Gateway customer created", "customer_id", cust.ID, "name", name)
	return cust.ID, nil
}

func (g *StripeGateway) UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	_, err := g.execute("update customer", func() (any, error) {
		return g.api.Customers.Update(customerID, params)
	})
	return err
}

func (g *StripeGateway) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	_, err := g.execute("delete customer", func() (any, error) {
		return g.api.Customers.Del(customerID, params)
	})
	return err
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (string, error) {
	attachParams := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	attachParams.Context = ctx

	_, err := g.execute("attach payment method", func() (any, error) {
		return g.api.PaymentMethods.Attach(paymentMethodID, attachParams)
	})
	if err != nil {
		return "", err
	}

	// Make it the default so future charges do not need an explicit method.
	updateParams := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	updateParams.Context = ctx
	if _, err := g.execute("set default payment method", func() (any, error) {
		return g.api.Customers.Update(customerID, updateParams)
	}); err != nil {
		return "", err
	}

	return paymentMethodID, nil
}

func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinorUnits),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Payment to " + req.MerchantName + " (Split payment)"),

		StatementDescriptor:       stripe.String(statementDescriptor),
		StatementDescriptorSuffix: stripe.String(truncate(req.MerchantName, 22)),
	}
	params.Context = ctx
	params.AddMetadata("merchantName", req.MerchantName)
	params.AddMetadata("participantName", req.ParticipantName)
	params.AddMetadata("splitInfo", req.SplitInfo)
	params.AddMetadata("groupTransactionId", req.GroupTransactionID)
	params.AddMetadata("type", "lumo_split_payment")

	result, err := g.execute("create charge", func() (any, error) {
		return g.api.PaymentIntents.New(params)
	})
	if err != nil {
		return nil, err
	}

	intent := result.(*stripe.PaymentIntent)
	slog.Debug("Gateway charge created",
		"charge_id", intent.ID,
		"status", string(intent.Status),
		"amount_minor_units", req.AmountMinorUnits,
	)
	return &ChargeResult{ChargeID: intent.ID, Status: string(intent.Status)}, nil
}

func (g *StripeGateway) PaymentMethodDisplay(ctx context.Context, paymentMethodID string) (*models.Card, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	result, err := g.execute("get payment method", func() (any, error) {
		return g.api.PaymentMethods.Get(paymentMethodID, params)
	})
	if err != nil {
		return nil, err
	}

	pm := result.(*stripe.PaymentMethod)
	if pm.Card == nil {
		return nil, &Error{Op: "get payment method", Err: errors.New("payment method has no card details")}
	}
	return &models.Card{
		Brand:    string(pm.Card.Brand),
		Last4:    pm.Card.Last4,
		ExpMonth: pm.Card.ExpMonth,
		ExpYear:  pm.Card.ExpYear,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
