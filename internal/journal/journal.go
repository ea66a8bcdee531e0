// Package journal persists trade events to a local SQLite database. The
// journal is a write-only sink: a failed write is reported to the caller for
// logging and must never block or fail the trading path.
package journal

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_ref TEXT NOT NULL,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	action TEXT NOT NULL,
	price REAL NOT NULL,
	quantity INTEGER NOT NULL,
	reason TEXT,
	order_id TEXT,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_events_ref ON trade_events(trade_ref);
CREATE INDEX IF NOT EXISTS idx_trade_events_symbol ON trade_events(symbol);
`

// Journal records trade events. Safe for use from a single goroutine; the
// trading loop is sequential so no locking is needed here.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path and ensures the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.Wrap(err, "opening journal database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "creating journal schema")
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record writes one trade event. Entry events mint a fresh trade reference;
// later events for the same trade carry the reference forward so a round
// trip groups under one ref. The returned reference is opaque to callers.
func (j *Journal) Record(event models.TradeEvent) (string, error) {
	ref := event.JournalRef
	if ref == "" {
		ref = uuid.NewString()
	}

	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := j.db.Exec(
		`INSERT INTO trade_events (trade_ref, symbol, strategy, action, price, quantity, reason, order_id, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref, event.Symbol, event.Strategy, string(event.Action), event.Price,
		event.Quantity, event.Reason, event.OrderID, at,
	)
	if err != nil {
		return "", apperrors.Wrap(err, "writing trade event")
	}
	return ref, nil
}
