package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	owner TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity REAL NOT NULL,
	avg_entry_price REAL NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (owner, symbol)
);
`

// SQLiteRepository persists positions in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open positions db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create positions schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Get(owner, symbol string) (Position, bool, error) {
	var p Position
	row := r.db.QueryRow(`
		SELECT owner, symbol, quantity, avg_entry_price, updated_at
		FROM positions
		WHERE owner = ? AND symbol = ?`, owner, symbol)

	err := row.Scan(&p.Owner, &p.Symbol, &p.Quantity, &p.AvgEntryPrice, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, err
	}
	return p, true, nil
}

func (r *SQLiteRepository) Save(p Position) error {
	_, err := r.db.Exec(`
		INSERT INTO positions (owner, symbol, quantity, avg_entry_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_entry_price = excluded.avg_entry_price,
			updated_at = excluded.updated_at`,
		p.Owner, p.Symbol, p.Quantity, p.AvgEntryPrice, p.UpdatedAt,
	)
	return err
}

func (r *SQLiteRepository) Delete(owner, symbol string) error {
	_, err := r.db.Exec(`DELETE FROM positions WHERE owner = ? AND symbol = ?`, owner, symbol)
	return err
}

func (r *SQLiteRepository) List(owner string) ([]Position, error) {
	rows, err := r.db.Query(`
		SELECT owner, symbol, quantity, avg_entry_price, updated_at
		FROM positions
		WHERE owner = ?
		ORDER BY symbol ASC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Owner, &p.Symbol, &p.Quantity, &p.AvgEntryPrice, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
