package store

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    amount REAL NOT NULL,
    channel TEXT NOT NULL,
    hour INTEGER NOT NULL,
    account_age_days INTEGER NOT NULL,
    kyc_verified INTEGER NOT NULL DEFAULT 0,
    location TEXT,
    is_fraud INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_channel ON transactions(channel);
CREATE INDEX IF NOT EXISTS idx_transactions_fraud ON transactions(is_fraud);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
`

// schemaDecisions defines the decisions audit log. One row per transaction
// id; replays never overwrite the first verdict.
const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    transaction_id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    final_label TEXT NOT NULL,
    fraud_probability REAL NOT NULL,
    risk_level TEXT NOT NULL,
    confidence REAL NOT NULL,
    reason TEXT,
    rule_flags TEXT NOT NULL,
    risk_factors TEXT NOT NULL,
    raw_model_prediction TEXT NOT NULL,
    raw_model_probability REAL NOT NULL,
    demo_boosted INTEGER NOT NULL DEFAULT 0,
    simulation_override INTEGER NOT NULL DEFAULT 0,
    model_version TEXT,
    scored_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_customer ON decisions(customer_id);
CREATE INDEX IF NOT EXISTS idx_decisions_label ON decisions(final_label);
CREATE INDEX IF NOT EXISTS idx_decisions_scored_at ON decisions(scored_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaDecisions,
	}
}
