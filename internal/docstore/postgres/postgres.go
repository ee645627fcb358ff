package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/xid"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_doc_gin ON documents USING GIN (doc jsonb_path_ops);
`

// Store persists documents as JSONB rows in a single table. Live
// subscriptions are served in-process: only writes made through this Store
// wake subscribers.
type Store struct {
	db  *sql.DB
	hub *docstore.Hub
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db}
	s.hub = docstore.NewHub(s.List)
	return s, nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return s.db.Close()
}

func (s *Store) Subscribe(q docstore.Query, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) func() {
	return s.hub.Subscribe(q, onSnapshot, onError)
}

func (s *Store) List(ctx context.Context, q docstore.Query) ([]docstore.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := make(map[string]any, len(q.Where))
	for _, f := range q.Where {
		filter[f.Field] = f.Value
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc
		FROM documents
		WHERE collection = $1 AND doc @> $2::jsonb
	`, q.Collection, string(filterJSON))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]docstore.Record, 0, 64)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		fields, err := docstore.UnmarshalFields(raw)
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, doc, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
	`, collection, id, string(payload))
	if err != nil {
		if isUniqueViolation(err) {
			return "", docstore.ErrInvalidDocument
		}
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
		SET doc = doc || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, string(payload))
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
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
