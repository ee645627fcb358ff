package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isdanary/backend/internal/docstore/memory"
	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/live"
	"isdanary/backend/internal/records"
)

func TestAcquireOpensOnceAndSubscribes(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(memory.New(), Options{OwnerScoped: true})
	defer reg.Close()

	p := domain.Principal{ID: "u1", Email: "juan@isdanary.ph"}
	ws := reg.Acquire(p)
	assert.Same(t, ws, reg.Acquire(p))
	assert.Equal(t, 1, reg.Len())

	assert.True(t, ws.Session.State().SignedIn())
	assert.False(t, ws.Products.Snapshot().Loading)

	_, err := ws.Products.Create(ctx, records.ProductFields(domain.ProductInput{Name: "Bangus", CurrentStock: 1, ReorderLevel: 3}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, ws.Board.Current().LowStock.Value)
}

func TestReleaseClearsItemsAndDropsWorkspace(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(memory.New(), Options{OwnerScoped: true})
	defer reg.Close()

	ws := reg.Acquire(domain.Principal{ID: "u1"})
	_, err := ws.Sales.Create(ctx, records.SaleFields(domain.SaleInput{ProductID: "p1", ProductName: "Bangus", Quantity: 1, TotalPrice: 80}))
	require.NoError(t, err)

	var last live.Snapshot[domain.Sale]
	ws.Sales.Listen(func(s live.Snapshot[domain.Sale]) { last = s })

	reg.Release("u1")
	assert.Empty(t, last.Items)
	assert.False(t, ws.Session.State().SignedIn())
	_, ok := reg.Lookup("u1")
	assert.False(t, ok)

	fresh := reg.Acquire(domain.Principal{ID: "u1"})
	assert.NotSame(t, ws, fresh)
	assert.Len(t, fresh.Sales.Snapshot().Items, 1)
}

func TestBoardUsesConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	manila := time.FixedZone("PHT", 8*60*60)
	// 2026-03-14 17:00 UTC is already the 15th in Manila.
	now := time.Date(2026, time.March, 14, 17, 0, 0, 0, time.UTC)
	reg := NewRegistry(memory.New(), Options{
		OwnerScoped: true,
		Location:    manila,
		Clock:       func() time.Time { return now },
	})
	defer reg.Close()

	ws := reg.Acquire(domain.Principal{ID: "u1"})
	_, err := ws.Sales.Create(ctx, records.SaleFields(domain.SaleInput{ProductID: "p1", ProductName: "Bangus", Quantity: 1, TotalPrice: 80}))
	require.NoError(t, err)

	now = time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, ws.Board.Current().TodaySales.Value, "sale was made on the 15th local time")
}
