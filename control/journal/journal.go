// Package journal records accepted button presses in a sqlite database, for working out later why
// the stopwatch did something surprising.  Nothing is ever read back into the clock.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/net/trace"
)

const initDatabase = `
CREATE TABLE IF NOT EXISTS press (date datetime not null, button text not null, from_phase text not null, to_phase text not null);
`

// Press is one accepted button press and the stopwatch transition it caused.
type Press struct {
	At       time.Time
	Button   string
	From, To string
}

type DB struct {
	*sql.DB
}

// OpenDatabase opens (or creates) the journal in filename.  ":memory:" works for tests.
func OpenDatabase(filename string) (*DB, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	// An in-memory database only lives as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(initDatabase); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db}, nil
}

// RecordPress inserts one press.
func (db *DB) RecordPress(p Press) error {
	s, err := db.Prepare("insert into press values(?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer s.Close()
	if _, err := s.Exec(p.At, p.Button, p.From, p.To); err != nil {
		return fmt.Errorf("insert press: %w", err)
	}
	return nil
}

// Record writes presses from c until c is closed or the context is done.
func (db *DB) Record(ctx context.Context, c <-chan Press) error {
	l := trace.NewEventLog("destination", "journal")
	defer l.Finish()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("record presses: %w", ctx.Err())
		case p, ok := <-c:
			if !ok {
				return nil
			}
			if err := db.RecordPress(p); err != nil {
				l.Errorf("record press %+v: %v", p, err)
				continue
			}
			l.Printf("recorded %s press: %s -> %s", p.Button, p.From, p.To)
		}
	}
}

// count returns the number of presses recorded for button, or for every button if button is empty.
func (db *DB) count(button string) (int, error) {
	if button == "" {
		return db.single("select count(1) from press")
	}
	return db.single("select count(1) from press where button = ?", button)
}

// Counts returns the number of presses recorded for each button.
func (db *DB) Counts() (map[string]int, error) {
	rows, err := db.Query("select button, count(1) from press group by button")
	if err != nil {
		return nil, fmt.Errorf("count presses: %w", err)
	}
	defer rows.Close()
	result := make(map[string]int)
	for rows.Next() {
		var button string
		var n int
		if err := rows.Scan(&button, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		result[button] = n
	}
	return result, rows.Err()
}

func (db *DB) single(query string, args ...interface{}) (int, error) {
	s, err := db.Prepare(query)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	rows, err := s.Query(args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var result int
	var found bool
	for rows.Next() {
		if found {
			return 0, errors.New("more than one row returned")
		}
		if err := rows.Scan(&result); err != nil {
			return 0, err
		}
		found = true
	}
	return result, rows.Err()
}
