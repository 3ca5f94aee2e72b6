package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
	trkerr "github.com/AlexandroFSD/price-tracker/pkg/errors"
)

// timestampLayout is the format readings are stored with. It sorts
// lexicographically, so ORDER BY on the column is chronological.
const timestampLayout = "2006-01-02 15:04:05"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	item_name TEXT NOT NULL,
	url TEXT NOT NULL,
	price REAL NOT NULL,
	UNIQUE(timestamp, url, price) ON CONFLICT IGNORE
);
`

// SQLiteStore implements Store on a single SQLite file. The database is
// opened and closed around every operation: checks run minutes apart, and a
// short-lived handle keeps the file free for other readers in between.
type SQLiteStore struct {
	path string
}

// NewSQLiteStore creates a store writing to the given database file.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init creates the parent directory and the schema. Safe to call repeatedly.
func (s *SQLiteStore) Init() error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return trkerr.NewStorage("", "failed to create database directory", err)
		}
	}

	conn, err := s.open()
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Exec(createTableSQL); err != nil {
		return trkerr.NewStorage("", "failed to create price_history table", err)
	}
	return nil
}

// Save appends one reading. A reading identical in timestamp, url and price
// to an existing row is silently ignored by the uniqueness constraint.
func (s *SQLiteStore) Save(reading domain.PriceReading) error {
	conn, err := s.open()
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Exec(
		"INSERT INTO price_history (timestamp, item_name, url, price) VALUES (?, ?, ?, ?)",
		reading.Timestamp.Format(timestampLayout),
		reading.ItemName,
		reading.URL,
		reading.Price,
	)
	if err != nil {
		return trkerr.NewStorage(reading.ItemName, "failed to save price reading", err)
	}
	return nil
}

// History returns the most recent readings for a URL, newest first.
func (s *SQLiteStore) History(url string, limit int) ([]domain.PriceReading, error) {
	conn, err := s.open()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.Query(
		"SELECT timestamp, item_name, url, price FROM price_history WHERE url = ? ORDER BY timestamp DESC LIMIT ?",
		url, limit,
	)
	if err != nil {
		return nil, trkerr.NewStorage("", "failed to query price history", err)
	}
	defer rows.Close()

	var readings []domain.PriceReading
	for rows.Next() {
		var r domain.PriceReading
		var ts string
		if err := rows.Scan(&ts, &r.ItemName, &r.URL, &r.Price); err != nil {
			return nil, trkerr.NewStorage("", "failed to scan price history row", err)
		}
		r.Timestamp, err = time.ParseInLocation(timestampLayout, ts, time.Local)
		if err != nil {
			return nil, trkerr.NewStorage("", "corrupt timestamp in price history", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, trkerr.NewStorage("", "failed to open database", err)
	}
	return conn, nil
}
