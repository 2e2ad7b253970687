package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Monetary amounts are stored as integer minor units (cents) to keep
// decimal arithmetic exact.
const schema = `
CREATE TABLE IF NOT EXISTS participants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    pledged_cents INTEGER NOT NULL,
    gateway_customer_id TEXT NOT NULL UNIQUE,
    default_payment_method_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    group_transaction_id TEXT NOT NULL UNIQUE,
    merchant_name TEXT NOT NULL,
    total_cents INTEGER NOT NULL,
    split_info TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transaction_payments (
    transaction_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    participant_id TEXT NOT NULL,
    participant_name TEXT NOT NULL,
    amount_cents INTEGER NOT NULL,
    charge_id TEXT NOT NULL,
    status TEXT NOT NULL,
    PRIMARY KEY (transaction_id, position),
    FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transaction_payments_transaction_id ON transaction_payments(transaction_id);
`

// Note: transaction_payments.participant_id deliberately carries no foreign
// key; it is a weak reference so deleting a participant leaves history intact.

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
