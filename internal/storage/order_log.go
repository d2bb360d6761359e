// Package storage persists the order log in SQLite and ledger checkpoints as
// JSON files, so a restart recovers open orders and committed capital state.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"trading_go/internal/domain"
	"trading_go/internal/event"
)

// OrderLog is the durable record of every order and its full transition
// history. SaveOrder upserts the current state; the JSON payload carries the
// audit trail.
type OrderLog struct {
	db *sql.DB
}

// NewOrderLog opens (or creates) the SQLite order log with WAL mode enabled.
func NewOrderLog(dbPath string) (*OrderLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			status TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	// Append-only journal of every published event, for audit and replay.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			type INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}

	return &OrderLog{db: db}, nil
}

// SaveEvent appends a published event to the journal, keyed by its bus
// sequence number.
func (l *OrderLog) SaveEvent(ctx context.Context, ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO events (id, type, ts, payload) VALUES (?, ?, ?, ?)",
		ev.GetSeq(), ev.GetType(), ev.GetTs(), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// LoadFillEvents returns all journaled fills in sequence order, for ledger
// reconstruction.
func (l *OrderLog) LoadFillEvents(ctx context.Context) ([]*event.FillEvent, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT payload FROM events WHERE type = ? ORDER BY id ASC", event.EvFill)
	if err != nil {
		return nil, fmt.Errorf("failed to query fill events: %w", err)
	}
	defer rows.Close()

	var fills []*event.FillEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var ev event.FillEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fill event: %w", err)
		}
		fills = append(fills, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return fills, nil
}

// SaveOrder upserts the order's current state and history.
func (l *OrderLog) SaveOrder(o *domain.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %s: %w", o.ID, err)
	}

	_, err = l.db.Exec(`
		INSERT INTO orders (id, symbol, side, status, parent_id, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			updated_at=excluded.updated_at,
			payload=excluded.payload`,
		o.ID, o.Symbol, string(o.Side), string(o.Status), o.ParentID, o.UpdatedUnixM, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", o.ID, err)
	}
	return nil
}

// LoadOrder retrieves one order by ID. Returns nil if not found.
func (l *OrderLog) LoadOrder(ctx context.Context, id string) (*domain.Order, error) {
	var payload []byte
	err := l.db.QueryRowContext(ctx, "SELECT payload FROM orders WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	var o domain.Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order %s: %w", id, err)
	}
	return &o, nil
}

// LoadOpenOrders returns every order not in a terminal state, for startup
// recovery and operator review.
func (l *OrderLog) LoadOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT payload FROM orders
		WHERE status NOT IN ('FILLED', 'CANCELLED', 'REJECTED', 'EXPIRED')
		ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		var o domain.Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order: %w", err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return orders, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (l *OrderLog) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys return
// an empty string.
func (l *OrderLog) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := l.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (l *OrderLog) Close() error {
	return l.db.Close()
}
