package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchwise/product-scraper/internal/models"
)

func testRecord(title string) *models.ProductRecord {
	record := models.NewProductRecord()
	record.Title = title
	price := 19.99
	record.Price = &price
	record.Currency = "EUR"
	record.Images = append(record.Images, "https://example.com/images/widget.jpg")
	return record
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", testRecord("Widget"), time.Minute))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Title)
	require.NotNil(t, got.Price)
	assert.InDelta(t, 19.99, *got.Price, 0.001)
	assert.Equal(t, []string{"https://example.com/images/widget.jpg"}, got.Images)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()

	_, err := c.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	require.NoError(t, c.Set(ctx, "k1", testRecord("Widget"), time.Minute))

	_, err := c.Get(ctx, "k1")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k1")
	require.ErrorIs(t, err, ErrCacheMiss)

	// The expired entry is deleted, not resurrected by a clock rollback.
	current = current.Add(-2 * time.Minute)
	_, err = c.Get(ctx, "k1")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheSnapshotIsolation(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	record := testRecord("Original")
	require.NoError(t, c.Set(ctx, "k1", record, time.Minute))

	record.Title = "Mutated"
	record.Images[0] = "https://example.com/images/other.jpg"

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, []string{"https://example.com/images/widget.jpg"}, got.Images)
}

func TestMemoryCacheZeroTTLUsesDefault(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", testRecord("Widget"), 0))

	_, err := c.Get(ctx, "k1")
	require.NoError(t, err)
}
