package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isdanary/backend/internal/docstore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "isdanary.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, doc := range []docstore.Fields{
		{"name": "Tilapia", "ownerId": "u1", "createdAt": int64(1_700_000_000_100)},
		{"name": "Bangus", "ownerId": "u1", "createdAt": int64(1_700_000_000_200)},
		{"name": "Shrimp", "ownerId": "u2", "createdAt": int64(1_700_000_000_300)},
	} {
		_, err := s.Create(ctx, "products", doc)
		require.NoError(t, err)
	}

	records, err := s.List(ctx, docstore.Query{
		Collection: "products",
		Where:      []docstore.Filter{{Field: "ownerId", Value: "u1"}},
		OrderBy:    "createdAt",
		Direction:  docstore.Descending,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Bangus", records[0].Fields["name"])
	assert.Equal(t, json.Number("1700000000200"), records[0].Fields["createdAt"])
}

func TestUpdatePatchesTopLevelKeys(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Create(ctx, "products", docstore.Fields{"name": "Tilapia", "price": 10, "supplier": "Pier"})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, "products", id, docstore.Fields{"price": 12.5}))

	records, err := s.List(ctx, docstore.Query{Collection: "products"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, json.Number("12.5"), records[0].Fields["price"])
	assert.Equal(t, "Pier", records[0].Fields["supplier"])

	assert.ErrorIs(t, s.Update(ctx, "products", "missing", docstore.Fields{"price": 1}), docstore.ErrNotFound)
}

func TestSubscriptionSeesWritesAndDeletes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var last []docstore.Record
	stop := s.Subscribe(docstore.Query{Collection: "sales"}, func(records []docstore.Record) {
		last = records
	}, nil)
	defer stop()

	id, err := s.Create(ctx, "sales", docstore.Fields{"productName": "Tilapia"})
	require.NoError(t, err)
	require.Len(t, last, 1)

	require.NoError(t, s.Delete(ctx, "sales", id))
	assert.Empty(t, last)
	assert.ErrorIs(t, s.Delete(ctx, "sales", id), docstore.ErrNotFound)
}
