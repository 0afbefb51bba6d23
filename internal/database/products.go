package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fetchwise/product-scraper/internal/models"
)

// StoredProduct is the persisted form of a scrape result, keyed by the hash
// of the normalized product URL so repeat scrapes of the same listing update
// one row.
type StoredProduct struct {
	URLHash    string               `json:"url_hash"`
	URL        string               `json:"url"`
	Platform   string               `json:"platform"`
	Title      string               `json:"title"`
	Record     models.ProductRecord `json:"record"`
	Provenance map[string]string    `json:"provenance,omitempty"`
	ScrapedAt  time.Time            `json:"scraped_at"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert writes a scrape result, replacing any previous record for the same
// URL hash. CreatedAt and UpdatedAt on the argument are populated from the
// database.
func (r *ProductRepository) Upsert(ctx context.Context, p *StoredProduct) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		return r.UpsertWithTx(ctx, tx, p)
	})
}

// UpsertWithTx is Upsert inside the caller's transaction, so the product and
// its outbox event can commit together.
func (r *ProductRepository) UpsertWithTx(ctx context.Context, tx pgx.Tx, p *StoredProduct) error {
	record, err := json.Marshal(p.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal product record: %w", err)
	}

	var provenance []byte
	if len(p.Provenance) > 0 {
		provenance, err = json.Marshal(p.Provenance)
		if err != nil {
			return fmt.Errorf("failed to marshal provenance: %w", err)
		}
	}

	query := `
		INSERT INTO products (url_hash, url, platform, title, record, provenance, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url_hash) DO UPDATE SET
			url        = EXCLUDED.url,
			platform   = EXCLUDED.platform,
			title      = EXCLUDED.title,
			record     = EXCLUDED.record,
			provenance = EXCLUDED.provenance,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = now()
		RETURNING created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		p.URLHash, p.URL, p.Platform, p.Title, record, provenance, p.ScrapedAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}

// Get loads a product by URL hash. A missing row returns (nil, nil).
func (r *ProductRepository) Get(ctx context.Context, urlHash string) (*StoredProduct, error) {
	query := `
		SELECT url_hash, url, COALESCE(platform, ''), COALESCE(title, ''),
		       record, provenance, COALESCE(scraped_at, created_at), created_at, updated_at
		FROM products
		WHERE url_hash = $1`

	var (
		p          StoredProduct
		record     []byte
		provenance []byte
	)
	err := r.db.QueryRow(ctx, query, urlHash).Scan(
		&p.URLHash, &p.URL, &p.Platform, &p.Title,
		&record, &provenance, &p.ScrapedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if err := json.Unmarshal(record, &p.Record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product record: %w", err)
	}
	if len(provenance) > 0 {
		if err := json.Unmarshal(provenance, &p.Provenance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provenance: %w", err)
		}
	}

	return &p, nil
}

// ListRecent returns the most recently updated products, newest first.
func (r *ProductRepository) ListRecent(ctx context.Context, limit int) ([]*StoredProduct, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT url_hash, url, COALESCE(platform, ''), COALESCE(title, ''),
		       record, provenance, COALESCE(scraped_at, created_at), created_at, updated_at
		FROM products
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*StoredProduct
	for rows.Next() {
		var (
			p          StoredProduct
			record     []byte
			provenance []byte
		)
		if err := rows.Scan(
			&p.URLHash, &p.URL, &p.Platform, &p.Title,
			&record, &provenance, &p.ScrapedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if err := json.Unmarshal(record, &p.Record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product record: %w", err)
		}
		if len(provenance) > 0 {
			if err := json.Unmarshal(provenance, &p.Provenance); err != nil {
				return nil, fmt.Errorf("failed to unmarshal provenance: %w", err)
			}
		}
		products = append(products, &p)
	}

	return products, rows.Err()
}
