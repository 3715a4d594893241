package postgres

import "context"

// schema is the minimal DDL the gateway needs. Production deployments manage
// migrations externally; this bootstrap exists for local development.
const schema = `
CREATE TABLE IF NOT EXISTS api_key_grants (
	id           TEXT PRIMARY KEY,
	key_hash     TEXT NOT NULL UNIQUE,
	key_prefix   TEXT NOT NULL,
	caller_id    TEXT NOT NULL,
	services     TEXT[] NOT NULL DEFAULT '{}',
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL,
	last_used_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS services (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	cost         BIGINT NOT NULL DEFAULT 0,
	lookup_param TEXT NOT NULL DEFAULT 'key',
	fallbacks    TEXT[] NOT NULL DEFAULT '{}',
	ttl_seconds  BIGINT NOT NULL DEFAULT 0,
	refresh      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credit_accounts (
	caller_id  TEXT PRIMARY KEY,
	balance    BIGINT NOT NULL CHECK (balance >= 0),
	version    BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id            TEXT PRIMARY KEY,
	caller_id     TEXT NOT NULL,
	tx_type       TEXT NOT NULL,
	amount        BIGINT NOT NULL,
	balance_after BIGINT NOT NULL,
	reference_id  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credit_tx_caller ON credit_transactions (caller_id, created_at DESC);

CREATE TABLE IF NOT EXISTS verification_records (
	service_id TEXT NOT NULL,
	lookup_key TEXT NOT NULL,
	payload    JSONB NOT NULL,
	source     TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (service_id, lookup_key)
);

CREATE TABLE IF NOT EXISTS usage_log (
	id          TEXT PRIMARY KEY,
	caller_id   TEXT NOT NULL,
	service_id  TEXT NOT NULL,
	lookup_key  TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	credits     BIGINT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	status_code INT NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_caller ON usage_log (caller_id, created_at DESC);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates any missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
