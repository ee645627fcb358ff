package docstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubTeardownDiscardsInFlightLoad(t *testing.T) {
	loading := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	hub := NewHub(func(ctx context.Context, q Query) ([]Record, error) {
		if calls.Add(1) == 1 {
			return nil, nil
		}
		close(loading)
		<-release
		return []Record{{ID: "prd-1"}}, nil
	})
	defer hub.Close()

	var (
		mu        sync.Mutex
		snapshots int
	)
	unsubscribe := hub.Subscribe(Query{Collection: "products"}, func([]Record) {
		mu.Lock()
		snapshots++
		mu.Unlock()
	}, nil)
	require.Equal(t, 1, snapshots)

	done := make(chan struct{})
	go func() {
		hub.Notify(context.Background(), "products")
		close(done)
	}()
	<-loading
	unsubscribe()
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, snapshots)
	assert.Equal(t, 0, hub.Len())
}

func TestHubSkipsDeliveriesAfterTeardown(t *testing.T) {
	hub := NewHub(func(ctx context.Context, q Query) ([]Record, error) {
		return nil, nil
	})
	defer hub.Close()

	var snapshots atomic.Int32
	unsubscribe := hub.Subscribe(Query{Collection: "sales"}, func([]Record) { snapshots.Add(1) }, nil)
	unsubscribe()
	unsubscribe()

	hub.Notify(context.Background(), "sales")
	assert.Equal(t, int32(1), snapshots.Load())
}
