package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

const createEventsSQL = `
CREATE TABLE IF NOT EXISTS events (
    id      BIGSERIAL PRIMARY KEY,
    kind    TEXT        NOT NULL,
    chat_id BIGINT      NOT NULL,
    game    TEXT        NOT NULL DEFAULT '',
    level   INT         NOT NULL DEFAULT 0,
    answer  TEXT        NOT NULL DEFAULT '',
    verdict TEXT        NOT NULL DEFAULT '',
    at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS events_chat_at_idx ON events (chat_id, at);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createEventsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS events`)
			return err
		},
	)
}
