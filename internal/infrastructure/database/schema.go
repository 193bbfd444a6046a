package database

// schemaDDL is the full schema, applied at startup. Statements are
// idempotent so repeated application is a no-op.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS tokens (
    address        TEXT PRIMARY KEY,
    symbol         TEXT NOT NULL DEFAULT 'UNKNOWN',
    decimals       INTEGER NOT NULL DEFAULT 18,
    genesis_block  BIGINT NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallets (
    address            TEXT PRIMARY KEY,
    last_synced_block  BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trades (
    id             BIGSERIAL PRIMARY KEY,
    wallet_address TEXT NOT NULL,
    token_address  TEXT NOT NULL,
    side           TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
    token_amount   NUMERIC(38,18) NOT NULL,
    usd_value      NUMERIC(38,18) NOT NULL,
    price_usd      NUMERIC(38,18) NOT NULL,
    block_number   BIGINT NOT NULL,
    block_time     TIMESTAMPTZ NOT NULL,
    tx_hash        TEXT NOT NULL,
    source         TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT trades_dedup UNIQUE (tx_hash, token_address, wallet_address, side)
);

CREATE INDEX IF NOT EXISTS idx_trades_replay
    ON trades (wallet_address, token_address, block_number, tx_hash, side);

CREATE INDEX IF NOT EXISTS idx_trades_token_block
    ON trades (token_address, block_number DESC);

CREATE TABLE IF NOT EXISTS positions (
    wallet_address   TEXT NOT NULL,
    token_address    TEXT NOT NULL,
    remaining_amount NUMERIC(38,18) NOT NULL DEFAULT 0,
    cost_basis_usd   NUMERIC(38,18) NOT NULL DEFAULT 0,
    realized_pnl_usd NUMERIC(38,18) NOT NULL DEFAULT 0,
    trade_count      BIGINT NOT NULL DEFAULT 0,
    last_trade_block BIGINT NOT NULL DEFAULT 0,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (wallet_address, token_address)
);

CREATE INDEX IF NOT EXISTS idx_positions_token_pnl
    ON positions (token_address, realized_pnl_usd DESC);

CREATE TABLE IF NOT EXISTS registrations (
    id                BIGSERIAL PRIMARY KEY,
    contest_id        BIGINT NOT NULL,
    wallet_address    TEXT NOT NULL,
    token_address     TEXT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'PENDING'
        CHECK (status IN ('PENDING', 'INDEXING', 'INDEXED', 'FAILED')),
    current_pnl       NUMERIC(38,18),
    indexed_at        TIMESTAMPTZ,
    pnl_calculated_at TIMESTAMPTZ,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT registrations_entry UNIQUE (contest_id, wallet_address, token_address)
);

CREATE INDEX IF NOT EXISTS idx_registrations_leaderboard
    ON registrations (contest_id, current_pnl DESC NULLS LAST);
`
