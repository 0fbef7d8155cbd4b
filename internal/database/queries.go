package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// StoredProduct is a product row joined with its brand, category and seller
// names.
type StoredProduct struct {
	ID             int64     `json:"id"`
	WBID           int64     `json:"wb_id"`
	Name           string    `json:"name"`
	Brand          string    `json:"brand"`
	Category       string    `json:"category"`
	SellerID       *int64    `json:"seller_id,omitempty"`
	SellerName     string    `json:"seller_name,omitempty"`
	Rating         *float64  `json:"rating,omitempty"`
	FeedbacksCount int       `json:"feedbacks_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type PricePoint struct {
	Current   float64   `json:"current"`
	Original  float64   `json:"original"`
	Discount  float64   `json:"discount"`
	Timestamp time.Time `json:"timestamp"`
}

type StockLevel struct {
	WarehouseID int64     `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	Timestamp   time.Time `json:"timestamp"`
}

type StoredFeedback struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Rating    *int       `json:"rating,omitempty"`
	Text      *string    `json:"text,omitempty"`
	Likes     int        `json:"likes"`
	Dislikes  int        `json:"dislikes"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ParsedAt  time.Time  `json:"parsed_at"`
}

// Stats counts the rows of every table plus the outbox backlog.
type Stats struct {
	Products       int64 `json:"products"`
	Brands         int64 `json:"brands"`
	Categories     int64 `json:"categories"`
	Sellers        int64 `json:"sellers"`
	PriceSnapshots int64 `json:"price_snapshots"`
	StockSnapshots int64 `json:"stock_snapshots"`
	Feedbacks      int64 `json:"feedbacks"`
	SellerDetails  int64 `json:"seller_details"`
	PendingEvents  int64 `json:"pending_events"`
	DeadLetters    int64 `json:"dead_letters"`
}

// GetProduct returns the product with wbID, or nil when it is not stored.
func (r *Repository) GetProduct(ctx context.Context, wbID int64) (*StoredProduct, error) {
	query := `
		SELECT
			p.id, p.wb_id, p.name,
			COALESCE(b.name, ''), COALESCE(c.name, ''),
			p.seller_id, COALESCE(s.name, ''),
			p.rating, p.feedbacks_count, p.created_at, p.updated_at
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories c ON c.id = p.category_id
		LEFT JOIN sellers s ON s.id = p.seller_id
		WHERE p.wb_id = $1`

	var p StoredProduct
	err := r.db.pool.QueryRow(ctx, query, wbID).Scan(
		&p.ID, &p.WBID, &p.Name,
		&p.Brand, &p.Category,
		&p.SellerID, &p.SellerName,
		&p.Rating, &p.FeedbacksCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// ListPrices returns up to limit price snapshots, newest first.
func (r *Repository) ListPrices(ctx context.Context, productID int64, limit int) ([]PricePoint, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT current_price, original_price, discount_percentage, timestamp
		FROM product_prices
		WHERE product_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	points := []PricePoint{}
	for rows.Next() {
		var pp PricePoint
		if err := rows.Scan(&pp.Current, &pp.Original, &pp.Discount, &pp.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		points = append(points, pp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return points, nil
}

// LatestStocks returns the most recent quantity per warehouse.
func (r *Repository) LatestStocks(ctx context.Context, productID int64) ([]StockLevel, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT DISTINCT ON (warehouse_id) warehouse_id, quantity, timestamp
		FROM product_stocks
		WHERE product_id = $1
		ORDER BY warehouse_id, timestamp DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	levels := []StockLevel{}
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.WarehouseID, &sl.Quantity, &sl.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		levels = append(levels, sl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return levels, nil
}

// ListFeedbacks returns up to limit reviews, newest first.
func (r *Repository) ListFeedbacks(ctx context.Context, productID int64, limit int) ([]StoredFeedback, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, rating, text, likes, dislikes, created_at, parsed_at
		FROM feedbacks
		WHERE product_id = $1
		ORDER BY created_at DESC NULLS LAST, id DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedbacks: %w", err)
	}
	defer rows.Close()

	feedbacks := []StoredFeedback{}
	for rows.Next() {
		var f StoredFeedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Rating, &f.Text, &f.Likes, &f.Dislikes, &f.CreatedAt, &f.ParsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		feedbacks = append(feedbacks, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return feedbacks, nil
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM brands),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM sellers),
			(SELECT COUNT(*) FROM product_prices),
			(SELECT COUNT(*) FROM product_stocks),
			(SELECT COUNT(*) FROM feedbacks),
			(SELECT COUNT(*) FROM seller_details)`).Scan(
		&s.Products, &s.Brands, &s.Categories, &s.Sellers,
		&s.PriceSnapshots, &s.StockSnapshots, &s.Feedbacks, &s.SellerDetails,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	if s.PendingEvents, err = r.outbox.PendingCount(ctx); err != nil {
		return nil, err
	}
	if s.DeadLetters, err = r.outbox.DeadLetterCount(ctx); err != nil {
		return nil, err
	}

	return &s, nil
}
