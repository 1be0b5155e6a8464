package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/papertrade/order"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_records (
	order_id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	quantity REAL NOT NULL,
	filled_quantity REAL NOT NULL DEFAULT 0,
	limit_price REAL,
	stop_price REAL,
	fill_price REAL NOT NULL DEFAULT 0,
	commission REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	fill_id TEXT NOT NULL UNIQUE,
	order_id TEXT NOT NULL,
	owner TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	commission REAL NOT NULL,
	fill_time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_owner ON trade_records(owner);
CREATE INDEX IF NOT EXISTS idx_fills_owner ON fills(owner, seq);
`

// SQLiteStore persists trade history in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(rec TradeRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO trade_records
		(order_id, owner, symbol, side, order_type, quantity, filled_quantity,
		 limit_price, stop_price, fill_price, commission, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.Owner, rec.Symbol, rec.Side, rec.Type,
		rec.Quantity, rec.FilledQuantity, rec.LimitPrice, rec.StopPrice,
		rec.FillPrice, rec.Commission, rec.Status, rec.Reason,
		rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) RecordFill(f order.Fill) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// INSERT OR IGNORE keeps fill replay idempotent on fill_id.
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO fills
		(fill_id, order_id, owner, symbol, side, price, quantity, commission, fill_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrderID, f.Owner, f.Symbol, f.Side, f.Price, f.Quantity, f.Commission, f.Time,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	res, err = tx.Exec(`
		UPDATE trade_records SET
			filled_quantity = filled_quantity + ?,
			fill_price = ?,
			commission = commission + ?,
			status = CASE WHEN filled_quantity + ? >= quantity THEN ? ELSE ? END,
			updated_at = ?
		WHERE order_id = ?`,
		f.Quantity, f.Price, f.Commission, f.Quantity,
		order.StatusFilled, order.StatusPartiallyFilled, f.Time, f.OrderID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record fill for order %s: %w", f.OrderID, ErrNotFound)
	}

	return tx.Commit()
}

func (s *SQLiteStore) UpdateStatus(orderID string, status order.Status, reason string, at time.Time) error {
	res, err := s.db.Exec(`
		UPDATE trade_records SET status = ?, reason = ?, updated_at = ?
		WHERE order_id = ?`,
		status, reason, at, orderID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update status for order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

const recordColumns = `
	order_id, owner, symbol, side, order_type, quantity, filled_quantity,
	limit_price, stop_price, fill_price, commission, status, reason, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (TradeRecord, error) {
	var rec TradeRecord
	var limitPrice, stopPrice sql.NullFloat64

	err := row.Scan(
		&rec.OrderID, &rec.Owner, &rec.Symbol, &rec.Side, &rec.Type,
		&rec.Quantity, &rec.FilledQuantity, &limitPrice, &stopPrice,
		&rec.FillPrice, &rec.Commission, &rec.Status, &rec.Reason,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return TradeRecord{}, err
	}
	if limitPrice.Valid {
		rec.LimitPrice = &limitPrice.Float64
	}
	if stopPrice.Valid {
		rec.StopPrice = &stopPrice.Float64
	}
	return rec, nil
}

func (s *SQLiteStore) Get(orderID string) (TradeRecord, error) {
	row := s.db.QueryRow(`SELECT`+recordColumns+`
		FROM trade_records WHERE order_id = ?`, orderID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return TradeRecord{}, fmt.Errorf("get order %s: %w", orderID, ErrNotFound)
	}
	return rec, err
}

func (s *SQLiteStore) list(query string, args ...any) ([]TradeRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListByOwner(owner string) ([]TradeRecord, error) {
	return s.list(`SELECT`+recordColumns+`
		FROM trade_records WHERE owner = ?
		ORDER BY created_at ASC, order_id ASC`, owner)
}

func (s *SQLiteStore) ListOpen(owner string) ([]TradeRecord, error) {
	return s.list(`SELECT`+recordColumns+`
		FROM trade_records
		WHERE owner = ? AND status IN (?, ?, ?)
		ORDER BY created_at ASC, order_id ASC`,
		owner, order.StatusNew, order.StatusPartiallyFilled, order.StatusPendingCancel)
}

func (s *SQLiteStore) Fills(owner string) ([]order.Fill, error) {
	rows, err := s.db.Query(`
		SELECT fill_id, order_id, owner, symbol, side, price, quantity, commission, fill_time
		FROM fills WHERE owner = ? ORDER BY seq ASC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Fill
	for rows.Next() {
		var f order.Fill
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Owner, &f.Symbol, &f.Side,
			&f.Price, &f.Quantity, &f.Commission, &f.Time); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
