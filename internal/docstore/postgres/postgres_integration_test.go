package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"isdanary/backend/internal/docstore"
)

func TestDocumentLifecycleAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("ISDANARY_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ISDANARY_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	owner := fmt.Sprintf("owner-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM documents WHERE doc->>'ownerId' = $1`, owner)
	})

	var last []docstore.Record
	stop := s.Subscribe(docstore.Query{
		Collection: "products",
		Where:      []docstore.Filter{{Field: "ownerId", Value: owner}},
		OrderBy:    "createdAt",
		Direction:  docstore.Descending,
	}, func(records []docstore.Record) {
		last = records
	}, func(err error) {
		t.Errorf("subscription error: %v", err)
	})
	defer stop()

	id, err := s.Create(ctx, "products", docstore.Fields{
		"name":         "Fresh Tilapia",
		"ownerId":      owner,
		"currentStock": 5,
		"price":        12.5,
		"createdAt":    time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(last) != 1 {
		t.Fatalf("expected one document in snapshot, got %d", len(last))
	}
	if got := last[0].Fields["price"]; got != json.Number("12.5") {
		t.Fatalf("expected price 12.5, got %v", got)
	}

	if err := s.Update(ctx, "products", id, docstore.Fields{"currentStock": 3}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := last[0].Fields["currentStock"]; got != json.Number("3") {
		t.Fatalf("expected stock 3 after update, got %v", got)
	}

	if err := s.Delete(ctx, "products", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(last) != 0 {
		t.Fatalf("expected empty snapshot after delete, got %d", len(last))
	}
}
