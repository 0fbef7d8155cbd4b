package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/wildberries-parser/internal/models"
)

// Repository stores marketplace snapshots. Each save runs in its own
// transaction.
type Repository struct {
	db     *DB
	outbox *OutboxRepository
	stream string
	now    func() time.Time
	logger *slog.Logger
}

func NewRepository(db *DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		outbox: NewOutboxRepository(db),
		stream: DefaultStream,
		now:    time.Now,
		logger: logger.With("component", "repository"),
	}
}

// WithStream sets the Redis stream product events are addressed to.
func (r *Repository) WithStream(stream string) *Repository {
	if stream != "" {
		r.stream = stream
	}
	return r
}

// ProductEvent is the outbox payload of a saved product snapshot.
type ProductEvent struct {
	ProductID  int64        `json:"product_id"`
	WBID       int64        `json:"wb_id"`
	Name       string       `json:"name"`
	Brand      string       `json:"brand"`
	Category   string       `json:"category"`
	SellerID   int64        `json:"seller_id"`
	Price      models.Price `json:"price"`
	TotalStock int          `json:"total_stock"`
	ScrapedAt  time.Time    `json:"scraped_at"`
}

// SaveProduct upserts the product with its brand, category and seller,
// appends one price row, one stock row per warehouse and one outbox event.
// On any failure nothing is written and (0, err) is returned.
func (r *Repository) SaveProduct(ctx context.Context, p *models.Product) (int64, error) {
	var productID int64

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		now := r.now()

		brandID, err := getOrCreateNamed(ctx, tx, "brands", p.Brand, now)
		if err != nil {
			return fmt.Errorf("failed to resolve brand: %w", err)
		}

		categoryID, err := getOrCreateNamed(ctx, tx, "categories", p.Category, now)
		if err != nil {
			return fmt.Errorf("failed to resolve category: %w", err)
		}

		var sellerID *int64
		if p.Seller.ID != 0 {
			if err := upsertSeller(ctx, tx, p.Seller, now); err != nil {
				return err
			}
			sellerID = &p.Seller.ID
		}

		productID, err = upsertProduct(ctx, tx, p, brandID, categoryID, sellerID, now)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO product_prices (product_id, current_price, original_price, discount_percentage, timestamp)
			VALUES ($1, $2, $3, $4, $5)`,
			productID, p.Price.Current, p.Price.Original, p.Price.Discount, now)
		if err != nil {
			return fmt.Errorf("failed to insert price: %w", err)
		}

		for _, warehouse := range slices.Sorted(maps.Keys(p.Stocks)) {
			_, err := tx.Exec(ctx, `
				INSERT INTO product_stocks (product_id, warehouse_id, quantity, timestamp)
				VALUES ($1, $2, $3, $4)`,
				productID, warehouse, p.Stocks[warehouse], now)
			if err != nil {
				return fmt.Errorf("failed to insert stock for warehouse %d: %w", warehouse, err)
			}
		}

		payload, err := json.Marshal(ProductEvent{
			ProductID:  productID,
			WBID:       p.WBID,
			Name:       p.Name,
			Brand:      p.Brand,
			Category:   p.Category,
			SellerID:   p.Seller.ID,
			Price:      p.Price,
			TotalStock: p.TotalStock(),
			ScrapedAt:  p.ScrapedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal product event: %w", err)
		}

		return r.outbox.InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: AggregateProduct,
			AggregateID:   strconv.FormatInt(p.WBID, 10),
			EventType:     EventProductSnapshotSaved,
			Payload:       payload,
			TargetStream:  r.stream,
		})
	})
	if err != nil {
		r.logger.Error("Failed to save product", "wb_id", p.WBID, "error", err)
		return 0, err
	}

	r.logger.Info("Product saved", "wb_id", p.WBID, "product_id", productID)
	return productID, nil
}

// getOrCreateNamed returns the id of the row called name in table,
// inserting it first when missing. table is never user input.
func getOrCreateNamed(ctx context.Context, tx pgx.Tx, table, name string, now time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, "SELECT id FROM "+table+" WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	err = tx.QueryRow(ctx,
		"INSERT INTO "+table+" (name, created_at, updated_at) VALUES ($1, $2, $2) RETURNING id",
		name, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func upsertSeller(ctx context.Context, tx pgx.Tx, s models.Seller, now time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO sellers (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at`,
		s.ID, s.Name, now)
	if err != nil {
		return fmt.Errorf("failed to upsert seller %d: %w", s.ID, err)
	}
	return nil
}

func upsertProduct(ctx context.Context, tx pgx.Tx, p *models.Product, brandID, categoryID int64, sellerID *int64, now time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, "SELECT id FROM products WHERE wb_id = $1", p.WBID).Scan(&id)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx, `
			UPDATE products SET
				name = $1, brand_id = $2, category_id = $3, seller_id = $4,
				rating = $5, feedbacks_count = $6, updated_at = $7
			WHERE id = $8`,
			p.Name, brandID, categoryID, sellerID, p.Rating, p.FeedbacksCount, now, id)
		if err != nil {
			return 0, fmt.Errorf("failed to update product: %w", err)
		}
		return id, nil

	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO products (wb_id, name, brand_id, category_id, seller_id, rating, feedbacks_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING id`,
			p.WBID, p.Name, brandID, categoryID, sellerID, p.Rating, p.FeedbacksCount, now).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert product: %w", err)
		}
		return id, nil

	default:
		return 0, fmt.Errorf("failed to look up product: %w", err)
	}
}

// SaveFeedback upserts a review keyed by (product, user) and returns its id.
// A review without any user key is always inserted as a new row.
func (r *Repository) SaveFeedback(ctx context.Context, productID int64, f *models.Feedback) (int64, error) {
	var feedbackID int64

	err := r.db.Transaction(ctx, func(tx pgx.Tx) error {
		now := r.now()

		if f.UserID == "" {
			var err error
			feedbackID, err = insertFeedback(ctx, tx, productID, f, now)
			return err
		}

		err := tx.QueryRow(ctx,
			"SELECT id FROM feedbacks WHERE product_id = $1 AND user_id = $2",
			productID, f.UserID).Scan(&feedbackID)

		switch {
		case err == nil:
			_, err = tx.Exec(ctx, `
				UPDATE feedbacks
				SET rating = $1, text = $2, likes = $3, dislikes = $4, parsed_at = $5
				WHERE id = $6`,
				f.Rating, f.Text, f.Likes, f.Dislikes, now, feedbackID)
			if err != nil {
				return fmt.Errorf("failed to update feedback: %w", err)
			}
			return nil

		case errors.Is(err, pgx.ErrNoRows):
			feedbackID, err = insertFeedback(ctx, tx, productID, f, now)
			return err

		default:
			return fmt.Errorf("failed to look up feedback: %w", err)
		}
	})
	if err != nil {
		r.logger.Error("Failed to save feedback", "product_id", productID, "error", err)
		return 0, err
	}

	return feedbackID, nil
}

func insertFeedback(ctx context.Context, tx pgx.Tx, productID int64, f *models.Feedback, now time.Time) (int64, error) {
	var createdAt *time.Time
	if !f.CreatedAt.IsZero() {
		createdAt = &f.CreatedAt
	}

	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO feedbacks (product_id, user_id, rating, text, likes, dislikes, created_at, parsed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		productID, f.UserID, f.Rating, f.Text, f.Likes, f.Dislikes, createdAt, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return id, nil
}

// SaveSellerDetails upserts a seller registration record by product URL.
func (r *Repository) SaveSellerDetails(ctx context.Context, d *models.SellerDetails) error {
	var wbID *int64
	if d.ProductWBID != 0 {
		wbID = &d.ProductWBID
	}
	scrapedAt := d.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = r.now()
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO seller_details (product_wb_id, product_name, product_url, seller_name, seller_info, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_url) DO UPDATE SET
			product_wb_id = EXCLUDED.product_wb_id,
			product_name = EXCLUDED.product_name,
			seller_name = EXCLUDED.seller_name,
			seller_info = EXCLUDED.seller_info,
			scraped_at = EXCLUDED.scraped_at`,
		wbID, d.ProductName, d.ProductURL, d.SellerName, d.SellerInfo, scrapedAt)
	if err != nil {
		return fmt.Errorf("failed to save seller details: %w", err)
	}
	return nil
}
