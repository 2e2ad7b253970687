package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/models"
	"github.com/danielodicho/lumo/internal/money"
	"github.com/danielodicho/lumo/internal/storage"
)

// CreateParticipant persists a new participant.
func (s *SQLiteStore) CreateParticipant(ctx context.Context, p *models.Participant) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (id, name, pledged_cents, gateway_customer_id, default_payment_method_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, money.ToMinorUnits(p.PledgedAmount), p.GatewayCustomerID, p.DefaultPaymentMethodID, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *SQLiteStore) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	p := &models.Participant{}
	var pledgedCents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, pledged_cents, gateway_customer_id, default_payment_method_id, created_at
		 FROM participants WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Name, &pledgedCents, &p.GatewayCustomerID, &p.DefaultPaymentMethodID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("participant %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	p.PledgedAmount = money.FromMinorUnits(pledgedCents)
	return p, nil
}

// ListParticipants returns all participants, oldest first.
func (s *SQLiteStore) ListParticipants(ctx context.Context) ([]*models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, pledged_cents, gateway_customer_id, default_payment_method_id, created_at
		 FROM participants ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		var pledgedCents int64
		if err := rows.Scan(&p.ID, &p.Name, &pledgedCents, &p.GatewayCustomerID, &p.DefaultPaymentMethodID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.PledgedAmount = money.FromMinorUnits(pledgedCents)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// UpdateParticipantPledge replaces a participant's pledged balance.
func (s *SQLiteStore) UpdateParticipantPledge(ctx context.Context, id string, amount decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE participants SET pledged_cents = ? WHERE id = ?",
		money.ToMinorUnits(amount), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update pledge: %w", err)
	}
	return requireRow(result, id)
}

// SetDefaultPaymentMethod records the participant's default payment method handle.
func (s *SQLiteStore) SetDefaultPaymentMethod(ctx context.Context, id, paymentMethodID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE participants SET default_payment_method_id = ? WHERE id = ?",
		paymentMethodID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set payment method: %w", err)
	}
	return requireRow(result, id)
}

// DeleteParticipant removes a participant. Transaction payments keep their
// weak reference and name snapshot.
func (s *SQLiteStore) DeleteParticipant(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM participants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return requireRow(result, id)
}

// requireRow converts a zero-row update/delete into a not-found error.
func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("participant %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
