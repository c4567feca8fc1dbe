package grants

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Grant is one persisted access authorization for an externally-chosen
// resource. The store outlives the process; it is the system of record the
// correlator asks to create and release grants against.
type Grant struct {
	URI       string    `json:"uri"`
	Read      bool      `json:"read"`
	Write     bool      `json:"write"`
	GrantedAt time.Time `json:"granted_at"`
}

// Store is a sqlite-backed grant registry.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS grants (
	uri        TEXT PRIMARY KEY,
	can_read   INTEGER NOT NULL,
	can_write  INTEGER NOT NULL,
	granted_at INTEGER NOT NULL
)`

// Open opens (creating if needed) the grant store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open grant store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init grant store: %w", err)
	}
	return &Store{db: db}, nil
}

// Take records a grant for uri. Taking an existing grant updates its modes;
// the call is idempotent.
func (s *Store) Take(uri string, read, write bool) error {
	_, err := s.db.Exec(`
		INSERT INTO grants (uri, can_read, can_write, granted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			can_read  = excluded.can_read,
			can_write = excluded.can_write`,
		uri, boolInt(read), boolInt(write), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("take grant for %s: %w", uri, err)
	}
	return nil
}

// Release drops the grant for uri. Releasing a grant that is already gone is
// not an error.
func (s *Store) Release(uri string) error {
	if _, err := s.db.Exec(`DELETE FROM grants WHERE uri = ?`, uri); err != nil {
		return fmt.Errorf("release grant for %s: %w", uri, err)
	}
	return nil
}

// Has reports whether a grant exists for uri.
func (s *Store) Has(uri string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM grants WHERE uri = ?`, uri).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check grant for %s: %w", uri, err)
	}
	return n > 0, nil
}

// List returns all current grants.
func (s *Store) List() ([]Grant, error) {
	rows, err := s.db.Query(`SELECT uri, can_read, can_write, granted_at FROM grants ORDER BY uri`)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		var read, write int
		var granted int64
		if err := rows.Scan(&g.URI, &read, &write, &granted); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Read = read != 0
		g.Write = write != 0
		g.GrantedAt = time.Unix(granted, 0)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Close closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
