package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryPredictionCacheExpiresAndBounds(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryPredictionCache(40*time.Millisecond, 2)
	id := uuid.New()

	c.Set(ctx, "a", &PredictionResult{ModelID: id, Demand: 1})
	got, ok := c.Get(ctx, "a")
	if !ok || got.Demand != 1 || got.ModelID != id {
		t.Fatalf("Get(a) = %+v, %v", got, ok)
	}
	got.Demand = 99
	if again, _ := c.Get(ctx, "a"); again.Demand != 1 {
		t.Fatalf("callers must not alias cached entries, got %v", again.Demand)
	}

	c.Set(ctx, "b", &PredictionResult{Demand: 2})
	c.Set(ctx, "c", &PredictionResult{Demand: 3})
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("oldest entry should be evicted past maxEntries")
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := c.Get(ctx, "c"); ok {
		t.Fatalf("entry should expire after ttl")
	}

	c.Set(ctx, "d", &PredictionResult{Demand: 4})
	c.Purge(ctx)
	if _, ok := c.Get(ctx, "d"); ok {
		t.Fatalf("Purge should drop every entry")
	}
	c.Set(ctx, "e", nil)
	if _, ok := c.Get(ctx, "e"); ok {
		t.Fatalf("nil results are not cached")
	}
}
