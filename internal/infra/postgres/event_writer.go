// Package postgres persists telemetry events in Postgres.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"puzzle-quiz-service/internal/telemetry"
)

// EventWriter appends play events to the events table.
type EventWriter struct {
	pool *pgxpool.Pool
}

func NewEventWriter(pool *pgxpool.Pool) *EventWriter {
	return &EventWriter{pool: pool}
}

func (w *EventWriter) Write(ctx context.Context, event telemetry.Event) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO events (kind, chat_id, game, level, answer, verdict, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.Kind, int64(event.Chat), event.Game, event.Level, event.Answer, event.Verdict, event.At)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
