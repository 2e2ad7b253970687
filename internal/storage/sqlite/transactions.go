package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielodicho/lumo/internal/models"
	"github.com/danielodicho/lumo/internal/money"
	"github.com/danielodicho/lumo/internal/storage"
)

// SaveTransaction persists a transaction record with all of its payments.
func (s *SQLiteStore) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, group_transaction_id, merchant_name, total_cents, split_info, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.GroupTransactionID, txn.MerchantName, money.ToMinorUnits(txn.TotalAmount),
		txn.SplitInfo, string(txn.Status), txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for i, payment := range txn.Payments {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_payments (transaction_id, position, participant_id, participant_name, amount_cents, charge_id, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, i, payment.ParticipantID, payment.ParticipantName,
			money.ToMinorUnits(payment.Amount), payment.ChargeID, string(payment.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TransactionByGroupID retrieves a transaction by its correlation id. The
// record id is accepted too, so the HTTP surface resolves either key.
func (s *SQLiteStore) TransactionByGroupID(ctx context.Context, groupID string) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var totalCents int64
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_transaction_id, merchant_name, total_cents, split_info, status, created_at
		 FROM transactions WHERE group_transaction_id = ? OR id = ?`,
		groupID, groupID,
	).Scan(&txn.ID, &txn.GroupTransactionID, &txn.MerchantName, &totalCents, &txn.SplitInfo, &status, &txn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	txn.TotalAmount = money.FromMinorUnits(totalCents)
	txn.Status = models.TransactionStatus(status)

	if txn.Payments, err = s.paymentsFor(ctx, txn.ID); err != nil {
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns all transactions, most recent first.
func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_transaction_id, merchant_name, total_cents, split_info, status, created_at
		 FROM transactions ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		txn := &models.Transaction{}
		var totalCents int64
		var status string
		if err := rows.Scan(&txn.ID, &txn.GroupTransactionID, &txn.MerchantName, &totalCents, &txn.SplitInfo, &status, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.TotalAmount = money.FromMinorUnits(totalCents)
		txn.Status = models.TransactionStatus(status)
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	for _, txn := range transactions {
		if txn.Payments, err = s.paymentsFor(ctx, txn.ID); err != nil {
			return nil, err
		}
	}
	return transactions, nil
}

// DeleteTransaction removes a transaction record by its id or group
// transaction id; payments cascade.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? OR group_transaction_id = ?", id, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// paymentsFor loads the ordered payment list of one transaction.
func (s *SQLiteStore) paymentsFor(ctx context.Context, transactionID string) ([]models.ParticipantPayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT participant_id, participant_name, amount_cents, charge_id, status
		 FROM transaction_payments WHERE transaction_id = ? ORDER BY position`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []models.ParticipantPayment
	for rows.Next() {
		var p models.ParticipantPayment
		var amountCents int64
		var status string
		if err := rows.Scan(&p.ParticipantID, &p.ParticipantName, &amountCents, &p.ChargeID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = money.FromMinorUnits(amountCents)
		p.Status = models.PaymentStatus(status)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}
