package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the settlement store (SQLite).
var Migrations = migrate.NewGroup("settlement")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_settlement_sessions",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlement_sessions (
    id          TEXT PRIMARY KEY,
    opened_at   DATETIME NOT NULL,
    closed_at   DATETIME NOT NULL,
    operations  INTEGER NOT NULL DEFAULT 0,
    touched     TEXT NOT NULL DEFAULT '[]',
    claims      TEXT NOT NULL DEFAULT '[]',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_settlement_sessions_closed_at ON settlement_sessions (closed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlement_sessions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlement_claim_entries",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlement_claim_entries (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL,
    owner       TEXT NOT NULL,
    currency    TEXT NOT NULL,
    amount      TEXT NOT NULL,
    kind        TEXT NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_settlement_claim_entries_owner ON settlement_claim_entries (owner, currency);
CREATE INDEX IF NOT EXISTS idx_settlement_claim_entries_session ON settlement_claim_entries (session_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlement_claim_entries`)
				return err
			},
		},
	)
}
