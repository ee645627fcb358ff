package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/xid"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (collection, id)
);
`

// Store keeps documents as JSON text in a single SQLite table.
type Store struct {
	db  *sql.DB
	hub *docstore.Hub
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
//
// The connection runs in WAL mode with a 5 second busy timeout and a single
// open connection, since SQLite allows one writer at a time.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db}
	s.hub = docstore.NewHub(s.List)
	return s, nil
}

func (s *Store) Close() error {
	s.hub.Close()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Subscribe(q docstore.Query, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) func() {
	return s.hub.Subscribe(q, onSnapshot, onError)
}

func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		query strings.Builder
		args  = []any{q.Collection}
	)
	query.WriteString(`SELECT id, doc FROM documents WHERE collection = ?`)
	for _, f := range q.Where {
		// Field names are validated identifiers, so splicing the JSON path is safe.
		fmt.Fprintf(&query, ` AND json_extract(doc, '$.%s') = ?`, f.Field)
		args = append(args, f.Value)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []docstore.Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := docstore.UnmarshalFields([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("document %s/%s: %w", q.Collection, id, err)
		}
		records = append(records, docstore.Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	docstore.Sort(q, records)
	return records, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if !docstore.ValidField(collection) {
		return "", docstore.ErrInvalidDocument
	}
	payload, err := docstore.MarshalFields(fields)
	if err != nil {
		return "", err
	}

	id := xid.New("")
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, doc) VALUES (?, ?, ?)
	`, collection, id, string(payload)); err != nil {
		return "", err
	}

	s.hub.Notify(ctx, collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection string, id string, fields docstore.Fields) error {
	payload, err := docstore.MarshalFields(fields)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET doc = json_patch(doc, ?), updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE collection = ? AND id = ?
	`, string(payload), collection, id)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}

	s.hub.Notify(ctx, collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}

	s.hub.Notify(ctx, collection)
	return nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return docstore.ErrNotFound
	}
	return nil
}
