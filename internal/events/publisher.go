package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeProductScraped is published after a product page was fetched,
	// extracted, and stored
	EventTypeProductScraped EventType = "PRODUCT_SCRAPED"
)

// ProductScrapedPayload is the payload for PRODUCT_SCRAPED events
type ProductScrapedPayload struct {
	EventID     string               `json:"event_id"`
	EventType   string               `json:"event_type"`
	Timestamp   time.Time            `json:"timestamp"`
	Source      string               `json:"source"`
	URL         string               `json:"url"`
	URLHash     string               `json:"url_hash"`
	Platform    string               `json:"platform,omitempty"`
	Product     models.ProductRecord `json:"product"`
	Diagnostics *models.Diagnostics  `json:"diagnostics,omitempty"`
}

// Publisher persists scrape results and emits events through the
// transactional outbox, so consumers never see a product without its event
// or an event without its product.
type Publisher struct {
	db       *database.DB
	products *database.ProductRepository
	outbox   *database.OutboxRepository
	logger   *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:       db,
		products: database.NewProductRepository(db),
		outbox:   database.NewOutboxRepository(db),
		logger:   logger.With("component", "event_publisher"),
	}
}

// PublishProductScraped upserts the product and writes the outbox row in one
// transaction.
func (p *Publisher) PublishProductScraped(ctx context.Context, product *database.StoredProduct, diag *models.Diagnostics) error {
	payload := &ProductScrapedPayload{
		EventID:     uuid.New().String(),
		EventType:   string(EventTypeProductScraped),
		Timestamp:   time.Now(),
		Source:      "product-scraper",
		URL:         product.URL,
		URLHash:     product.URLHash,
		Platform:    product.Platform,
		Product:     product.Record,
		Diagnostics: diag,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   product.URLHash,
		EventType:     string(EventTypeProductScraped),
		Payload:       data,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := p.products.UpsertWithTx(ctx, tx, product); err != nil {
			return err
		}
		if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"url_hash", product.URLHash,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
