// Package store keeps a SQLite history of translations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("postfix.store")

// ErrNotFound indicates the requested record doesn't exist
var ErrNotFound = errors.New("translation not found")

// Record is one stored translation.
type Record struct {
	ID        string
	Source    string // file name or other caller-chosen label
	Listing   string // formatted instruction stream
	Labels    int    // label uses in the audit trail
	Variables int
	Program   []byte // CBOR-encoded program
	CreatedAt time.Time
}

// Store handles SQLite storage for translations
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS translations (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		listing    TEXT NOT NULL,
		labels     INTEGER NOT NULL,
		variables  INTEGER NOT NULL,
		program    BLOB,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores rec and returns it with its ID and CreatedAt filled in.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translations (id, source, listing, labels, variables, program, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.Listing, rec.Labels, rec.Variables, rec.Program, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return rec, fmt.Errorf("saving translation: %w", err)
	}
	log.Debugf("saved translation %s (%s)", rec.ID, rec.Source)
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var created int64
	if err := row.Scan(&rec.ID, &rec.Source, &rec.Listing, &rec.Labels, &rec.Variables, &rec.Program, &created); err != nil {
		return rec, err
	}
	rec.CreatedAt = time.Unix(0, created)
	return rec, nil
}

// Get retrieves a translation by id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, listing, labels, variables, program, created_at FROM translations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("querying translation: %w", err)
	}
	return rec, nil
}

// List returns up to limit translations, newest first. A limit of zero or
// less returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, listing, labels, variables, program, created_at FROM translations
		 ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing translations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning translation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
