package watchlist

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"wavescope/pkg/model"
)

// SQLiteStore keeps the watchlist in a SQLite database. The rewrite-in-full
// contract maps onto a delete-and-reinsert inside one transaction; position
// preserves list order across loads.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and ensures the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so a reader never blocks the rewrite.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS watchlist (
		position INTEGER PRIMARY KEY,
		symbol   TEXT NOT NULL UNIQUE,
		name     TEXT NOT NULL DEFAULT ''
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads the full list in stored order.
func (s *SQLiteStore) Load() ([]model.Stock, error) {
	rows, err := s.db.Query("SELECT symbol, name FROM watchlist ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var stocks []model.Stock
	for rows.Next() {
		var st model.Stock
		if err := rows.Scan(&st.Symbol, &st.Name); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// Save replaces the stored list with the given one atomically.
func (s *SQLiteStore) Save(stocks []model.Stock) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin rewrite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM watchlist"); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO watchlist (position, symbol, name) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, st := range stocks {
		if _, err := stmt.Exec(i, st.Symbol, st.Name); err != nil {
			return fmt.Errorf("insert %s: %w", st.Symbol, err)
		}
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
