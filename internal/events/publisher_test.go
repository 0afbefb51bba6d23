package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/models"
)

func TestPublisherProductScraped(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewFromDSN(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx))
	t.Cleanup(func() {
		_, _ = db.Exec(ctx, "TRUNCATE products, scrape_tasks, outbox_event")
		db.Close()
	})

	pub := NewPublisher(db, quietLogger())

	price := 34.50
	product := &database.StoredProduct{
		URLHash:  "pub-hash-1",
		URL:      "https://www.example.com/product/1",
		Platform: "shopify",
		Title:    "Linen Shirt",
		Record: models.ProductRecord{
			Title:    "Linen Shirt",
			Price:    &price,
			Currency: "EUR",
		},
		ScrapedAt: time.Now(),
	}
	diag := &models.Diagnostics{
		OriginalURL: product.URL,
		FinalURL:    product.URL,
		Platform:    "shopify",
		ScrapedAt:   time.Now(),
	}

	require.NoError(t, pub.PublishProductScraped(ctx, product, diag))

	// The product row and the outbox row land together.
	stored, err := database.NewProductRepository(db).Get(ctx, "pub-hash-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Linen Shirt", stored.Title)

	pending, err := database.NewOutboxRepository(db).GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, string(EventTypeProductScraped), pending[0].EventType)
	assert.Equal(t, "pub-hash-1", pending[0].AggregateID)
	assert.Equal(t, database.DefaultTargetStream, pending[0].TargetStream)

	var payload ProductScrapedPayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, product.URL, payload.URL)
	assert.Equal(t, "product-scraper", payload.Source)
	assert.NotEmpty(t, payload.EventID)
	require.NotNil(t, payload.Product.Price)
	assert.Equal(t, price, *payload.Product.Price)
}
