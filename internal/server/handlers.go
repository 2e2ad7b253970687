package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/calculator"
	"github.com/danielodicho/lumo/internal/gateway"
	"github.com/danielodicho/lumo/internal/ledger"
	"github.com/danielodicho/lumo/internal/models"
	"github.com/danielodicho/lumo/internal/orchestrator"
	"github.com/danielodicho/lumo/internal/service"
	"github.com/danielodicho/lumo/internal/storage"
)

// --- wire types ---

type participantJSON struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	PledgedAmount          json.Number  `json:"pledgedAmount"`
	GatewayCustomerID      string       `json:"gatewayCustomerId"`
	DefaultPaymentMethodID string       `json:"defaultPaymentMethodId,omitempty"`
	Card                   *models.Card `json:"card,omitempty"`
	CreatedAt              int64        `json:"createdAt"`
}

type paymentJSON struct {
	ParticipantID   string      `json:"participantId"`
	ParticipantName string      `json:"participantName"`
	Amount          json.Number `json:"amount"`
	ChargeID        string      `json:"chargeId"`
	Status          string      `json:"status"`
}

type transactionJSON struct {
	ID                 string        `json:"id"`
	GroupTransactionID string        `json:"groupTransactionId"`
	MerchantName       string        `json:"merchantName"`
	TotalAmount        json.Number   `json:"totalAmount"`
	Payments           []paymentJSON `json:"participantPayments"`
	SplitInfo          string        `json:"splitInfo"`
	Status             string        `json:"status"`
	CreatedAt          int64         `json:"createdAt"`
}

func amountJSON(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func toParticipantJSON(p *models.Participant, card *models.Card) participantJSON {
	return participantJSON{
		ID:                     p.ID,
		Name:                   p.Name,
		PledgedAmount:          amountJSON(p.PledgedAmount),
		GatewayCustomerID:      p.GatewayCustomerID,
		DefaultPaymentMethodID: p.DefaultPaymentMethodID,
		Card:                   card,
		CreatedAt:              p.CreatedAt,
	}
}

func toTransactionJSON(txn *models.Transaction) transactionJSON {
	payments := make([]paymentJSON, len(txn.Payments))
	for i, p := range txn.Payments {
		payments[i] = paymentJSON{
			ParticipantID:   p.ParticipantID,
			ParticipantName: p.ParticipantName,
			Amount:          amountJSON(p.Amount),
			ChargeID:        p.ChargeID,
			Status:          string(p.Status),
		}
	}
	return transactionJSON{
		ID:                 txn.ID,
		GroupTransactionID: txn.GroupTransactionID,
		MerchantName:       txn.MerchantName,
		TotalAmount:        amountJSON(txn.TotalAmount),
		Payments:           payments,
		SplitInfo:          txn.SplitInfo,
		Status:             string(txn.Status),
		CreatedAt:          txn.CreatedAt,
	}
}

// --- participants ---

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	views, err := s.participants.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]participantJSON, len(views))
	for i, v := range views {
		out[i] = toParticipantJSON(v.Participant, v.Card)
	}
	writeJSON(w, http.StatusOK, out)
}

type createParticipantRequest struct {
	Name            string      `json:"name"`
	PledgedAmount   json.Number `json:"pledgedAmount"`
	PaymentMethodID string      `json:"paymentMethodId"`
}

func (s *Server) createParticipant(w http.ResponseWriter, r *http.Request) {
	var req createParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	pledge, err := parseAmount(req.PledgedAmount)
	if err != nil {
		writeBadRequest(w, "invalid pledged amount")
		return
	}

	view, err := s.participants.Create(r.Context(), req.Name, pledge, req.PaymentMethodID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantJSON(view.Participant, view.Card))
}

func (s *Server) getParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := s.participants.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantJSON(p, nil))
}

type paymentMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

func (s *Server) addPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	p, err := s.participants.AddPaymentMethod(r.Context(), chi.URLParam(r, "id"), req.PaymentMethodID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantJSON(p, nil))
}

type pledgeRequest struct {
	Amount json.Number `json:"amount"`
}

func (s *Server) updatePledge(w http.ResponseWriter, r *http.Request) {
	var req pledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, "invalid amount")
		return
	}

	p, err := s.participants.UpdatePledge(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantJSON(p, nil))
}

func (s *Server) deleteParticipant(w http.ResponseWriter, r *http.Request) {
	if err := s.participants.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- transactions ---

type processTransactionRequest struct {
	GroupTransactionID string      `json:"groupTransactionId,omitempty"`
	MerchantName       string      `json:"merchantName"`
	TotalAmount        json.Number `json:"totalAmount"`
	ParticipantIDs     []string    `json:"participantIds"`
}

func (s *Server) processTransaction(w http.ResponseWriter, r *http.Request) {
	var req processTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	total, err := parseAmount(req.TotalAmount)
	if err != nil {
		writeBadRequest(w, "invalid total amount")
		return
	}

	txn, err := s.orch.ProcessTransaction(r.Context(), orchestrator.Request{
		GroupTransactionID: req.GroupTransactionID,
		MerchantName:       req.MerchantName,
		TotalAmount:        total,
		ParticipantIDs:     req.ParticipantIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(txn))
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.store.ListTransactions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]transactionJSON, len(transactions))
	for i, txn := range transactions {
		out[i] = toTransactionJSON(txn)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.store.TransactionByGroupID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(txn))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}

// --- helpers ---

func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	return decimal.NewFromString(n.String())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors to HTTP responses. Raw gateway payloads stay
// in the logs; clients only get short messages plus structured context.
func writeError(w http.ResponseWriter, err error) {
	var (
		minErr     *calculator.BelowMinimumChargeError
		fundsErr   *ledger.InsufficientFundsError
		pmErr      *orchestrator.NoPaymentMethodError
		partialErr *orchestrator.PartialFailureError
		persistErr *orchestrator.RecordPersistenceError
		gwErr      *gateway.Error
	)

	switch {
	case errors.Is(err, calculator.ErrInvalidAmount),
		errors.Is(err, calculator.ErrEmptyParticipants),
		errors.Is(err, calculator.ErrDuplicateParticipant),
		errors.Is(err, orchestrator.ErrMissingMerchant),
		errors.Is(err, service.ErrMissingName),
		errors.Is(err, service.ErrMissingPaymentMethod),
		errors.Is(err, service.ErrInvalidPledge),
		errors.As(err, &minErr),
		errors.As(err, &pmErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})

	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})

	case errors.As(err, &fundsErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":         "insufficient funds",
			"participantId": fundsErr.ParticipantID,
			"required":      fundsErr.Required.StringFixed(2),
			"available":     fundsErr.Available.StringFixed(2),
		})

	case errors.As(err, &partialErr):
		failed := make([]map[string]string, len(partialErr.Failed))
		for i, f := range partialErr.Failed {
			failed[i] = map[string]string{
				"participantId":   f.ParticipantID,
				"participantName": f.ParticipantName,
				"amount":          f.Amount.StringFixed(2),
			}
		}
		succeeded := make([]map[string]string, len(partialErr.Succeeded))
		for i, c := range partialErr.Succeeded {
			succeeded[i] = map[string]string{
				"participantId":   c.ParticipantID,
				"participantName": c.ParticipantName,
				"amount":          c.Amount.StringFixed(2),
				"chargeId":        c.ChargeID,
			}
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":              partialErr.Error(),
			"groupTransactionId": partialErr.GroupTransactionID,
			"failedPayments":     failed,
			"succeededCharges":   succeeded,
		})

	case errors.As(err, &persistErr):
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":                  "transaction completed but could not be recorded",
			"groupTransactionId":     persistErr.Transaction.GroupTransactionID,
			"requiresReconciliation": true,
		})

	case errors.As(err, &gwErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway error"})

	default:
		slog.Error("Unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
