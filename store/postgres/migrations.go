package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Subfund store.
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
    fee_bps              INT NOT NULL DEFAULT 0,
    paused               BOOLEAN NOT NULL DEFAULT FALSE,
    total_services       BIGINT NOT NULL DEFAULT 0,
    total_fees_collected BIGINT NOT NULL DEFAULT 0,
    last_payment_run     TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_config;`)
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
    service_count     BIGINT NOT NULL DEFAULT 0,
    total_subscribers BIGINT NOT NULL DEFAULT 0,
    verified          BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subfund_providers_owner ON subfund_providers (owner_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_providers;`)
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
    service_id          BIGINT NOT NULL DEFAULT 0,
    name                TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    fee_usd_cents       BIGINT NOT NULL DEFAULT 0,
    billing_period_days BIGINT NOT NULL DEFAULT 0,
    image_url           TEXT NOT NULL DEFAULT '',
    current_subscribers BIGINT NOT NULL DEFAULT 0,
    max_subscribers     BIGINT NOT NULL DEFAULT 0,
    active              BOOLEAN NOT NULL DEFAULT TRUE,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subfund_plans_service ON subfund_plans (provider_id, service_id);
CREATE INDEX IF NOT EXISTS idx_subfund_plans_active ON subfund_plans (active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_plans;`)
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
    available            BIGINT NOT NULL DEFAULT 0,
    locked               BIGINT NOT NULL DEFAULT 0,
    staked               BIGINT NOT NULL DEFAULT 0,
    total_deposited      BIGINT NOT NULL DEFAULT 0,
    total_withdrawn      BIGINT NOT NULL DEFAULT 0,
    total_yield_credited BIGINT NOT NULL DEFAULT 0,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_balances;`)
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
    principal          BIGINT NOT NULL DEFAULT 0,
    yield_units        BIGINT NOT NULL DEFAULT 0,
    staked_at          TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    last_yield_claim   TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    total_yield_earned BIGINT NOT NULL DEFAULT 0,
    active             BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_stakes;`)
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
    service_id       BIGINT NOT NULL DEFAULT 0,
    subscribed_at    TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    next_payment_due TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    last_payment_at  TIMESTAMPTZ,
    total_payments   BIGINT NOT NULL DEFAULT 0,
    lock_reserved    BIGINT NOT NULL DEFAULT 0,
    lock_consumed    BIGINT NOT NULL DEFAULT 0,
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    unsubscribed_at  TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subfund_subscriptions_key ON subfund_subscriptions (user_id, provider_id, service_id);
CREATE INDEX IF NOT EXISTS idx_subfund_subscriptions_due ON subfund_subscriptions (active, next_payment_due);
CREATE INDEX IF NOT EXISTS idx_subfund_subscriptions_user ON subfund_subscriptions (user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_subscriptions;`)
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
    service_id  BIGINT NOT NULL DEFAULT 0,
    amount      BIGINT NOT NULL DEFAULT 0,
    fee         BIGINT NOT NULL DEFAULT 0,
    paid_at     TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    kind        TEXT NOT NULL DEFAULT 'scheduled',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_subfund_payments_user ON subfund_payments (user_id, paid_at);
CREATE INDEX IF NOT EXISTS idx_subfund_payments_provider ON subfund_payments (provider_id, paid_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subfund_payments;`)
				return err
			},
		},
	)
}
