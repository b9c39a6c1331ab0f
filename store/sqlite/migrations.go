package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Subfund store (SQLite).
var Migrations = migrate.NewGroup("subfund")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_subfund_config",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subfund_config (
    id                   TEXT PRIMARY KEY,
    authority            TEXT NOT NULL DEFAULT '',
    fee_bps              INTEGER NOT NULL DEFAULT 0,
    paused               INTEGER NOT NULL DEFAULT 0,
    total_services       INTEGER NOT NULL DEFAULT 0,
    total_fees_collected INTEGER NOT NULL DEFAULT 0,
    last_payment_run     TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at           TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_config`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_subfund_providers",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subfund_providers (
    id                TEXT PRIMARY KEY,
    owner_id          TEXT NOT NULL DEFAULT '',
    name              TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    service_count     INTEGER NOT NULL DEFAULT 0,
    total_subscribers INTEGER NOT NULL DEFAULT 0,
    verified          INTEGER NOT NULL DEFAULT 0,
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subfund_providers_owner ON subfund_providers (owner_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_providers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_subfund_plans",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subfund_plans (
    id                  TEXT PRIMARY KEY,
    provider_id         TEXT NOT NULL DEFAULT '',
    service_id          INTEGER NOT NULL DEFAULT 0,
    name                TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    fee_usd_cents       INTEGER NOT NULL DEFAULT 0,
    billing_period_days INTEGER NOT NULL DEFAULT 0,
    image_url           TEXT NOT NULL DEFAULT '',
    current_subscribers INTEGER NOT NULL DEFAULT 0,
    max_subscribers     INTEGER NOT NULL DEFAULT 0,
    active              INTEGER NOT NULL DEFAULT 1,
    created_at          TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subfund_plans_service ON subfund_plans (provider_id, service_id);
CREATE INDEX IF NOT EXISTS idx_subfund_plans_active ON subfund_plans (active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_subfund_balances",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subfund_balances (
    user_id              TEXT PRIMARY KEY,
    available            INTEGER NOT NULL DEFAULT 0,
    locked               INTEGER NOT NULL DEFAULT 0,
    staked               INTEGER NOT NULL DEFAULT 0,
    total_deposited      INTEGER NOT NULL DEFAULT 0,
    total_withdrawn      INTEGER NOT NULL DEFAULT 0,
    total_yield_credited INTEGER NOT NULL DEFAULT 0,
    created_at           TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at           TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_subfund_stakes",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subfund_stakes (
    user_id            TEXT PRIMARY KEY,
    id                 TEXT NOT NULL DEFAULT '',
    principal          INTEGER NOT NULL DEFAULT 0,
    yield_units        INTEGER NOT NULL DEFAULT 0,
    staked_at          TEXT NOT NULL DEFAULT '',
    last_yield_claim   TEXT NOT NULL DEFAULT '',
    total_yield_earned INTEGER NOT NULL DEFAULT 0,
    active             INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_stakes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_subfund_subscriptions",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subfund_subscriptions (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL DEFAULT '',
    provider_id      TEXT NOT NULL DEFAULT '',
    service_id       INTEGER NOT NULL DEFAULT 0,
    subscribed_at    TEXT NOT NULL DEFAULT '',
    next_payment_due TEXT NOT NULL DEFAULT '',
    last_payment_at  TEXT,
    total_payments   INTEGER NOT NULL DEFAULT 0,
    lock_reserved    INTEGER NOT NULL DEFAULT 0,
    lock_consumed    INTEGER NOT NULL DEFAULT 0,
    active           INTEGER NOT NULL DEFAULT 1,
    unsubscribed_at  TEXT,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subfund_subscriptions_key ON subfund_subscriptions (user_id, provider_id, service_id);
CREATE INDEX IF NOT EXISTS idx_subfund_subscriptions_due ON subfund_subscriptions (active, next_payment_due);
CREATE INDEX IF NOT EXISTS idx_subfund_subscriptions_user ON subfund_subscriptions (user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_subfund_payments",
			Version: "20240101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subfund_payments (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL DEFAULT '',
    provider_id TEXT NOT NULL DEFAULT '',
    service_id  INTEGER NOT NULL DEFAULT 0,
    amount      INTEGER NOT NULL DEFAULT 0,
    fee         INTEGER NOT NULL DEFAULT 0,
    paid_at     TEXT NOT NULL DEFAULT '',
    kind        TEXT NOT NULL DEFAULT 'scheduled',
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_subfund_payments_user ON subfund_payments (user_id, paid_at);
CREATE INDEX IF NOT EXISTS idx_subfund_payments_provider ON subfund_payments (provider_id, paid_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_payments`)
				return err
			},
		},
	)
}
