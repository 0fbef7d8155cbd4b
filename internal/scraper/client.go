package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/maltedev/wildberries-parser/internal/models"
)

// Client reads the public marketplace JSON endpoints. Every request goes
// through the retrying getter; payloads with a missing path map to empty
// results.
type Client struct {
	http      JSONGetter
	endpoints Endpoints
	logger    *slog.Logger
}

func NewClient(getter JSONGetter, endpoints Endpoints, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:      getter,
		endpoints: endpoints,
		logger:    logger.With("component", "wb-client"),
	}
}

// ProductDetail returns the product with its prices and stocks, or nil when
// the card payload has no product.
func (c *Client) ProductDetail(ctx context.Context, wbID int64) (*models.Product, error) {
	params := commonParams()
	params.Set("nm", strconv.FormatInt(wbID, 10))

	var resp CardResponse
	if err := c.http.GetJSON(ctx, c.endpoints.CardURL+"/cards/detail", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch product %d: %w", wbID, err)
	}

	record, ok := resp.First()
	if !ok {
		c.logger.Warn("Product card is empty", "wb_id", wbID)
		return nil, nil
	}

	product := toProduct(wbID, record)

	price, err := c.Price(ctx, wbID)
	if err != nil {
		c.logger.Warn("Failed to fetch price, storing zeros", "wb_id", wbID, "error", err)
		price = models.Price{}
	}
	if !price.IsValid() {
		c.logger.Warn("Price looks inconsistent", "wb_id", wbID, "current", price.Current, "original", price.Original)
	}
	product.Price = price

	return product, nil
}

// Price reads the pricing endpoint. A payload without the product yields
// zero prices.
func (c *Client) Price(ctx context.Context, wbID int64) (models.Price, error) {
	params := priceParams()
	params.Set("nm", strconv.FormatInt(wbID, 10))

	var resp CardResponse
	if err := c.http.GetJSON(ctx, c.endpoints.PriceURL+"/nm-2-card/catalog", params, &resp); err != nil {
		return models.Price{}, fmt.Errorf("failed to fetch price for %d: %w", wbID, err)
	}

	record, ok := resp.First()
	if !ok {
		return models.Price{}, nil
	}
	return RecordPrice(record), nil
}

func (c *Client) CategoryProducts(ctx context.Context, categoryID string, page int) ([]models.ListingItem, error) {
	params := listingParams(page)
	target := c.endpoints.CatalogURL + "/catalog/" + url.PathEscape(strings.Trim(categoryID, "/")) + "/catalog"
	return c.listing(ctx, target, params)
}

func (c *Client) SellerProducts(ctx context.Context, sellerID int64, page int) ([]models.ListingItem, error) {
	params := listingParams(page)
	params.Set("supplier", strconv.FormatInt(sellerID, 10))
	return c.listing(ctx, c.endpoints.CatalogURL+"/sellers/catalog", params)
}

func (c *Client) Search(ctx context.Context, query string, page int) ([]models.ListingItem, error) {
	params := listingParams(page)
	params.Set("query", query)
	params.Set("resultset", "catalog")
	return c.listing(ctx, c.endpoints.SearchURL+"/exactmatch/ru/common/v4/search", params)
}

// Feedbacks returns one page of reviews, newest first.
func (c *Client) Feedbacks(ctx context.Context, wbID int64, page int) ([]models.Feedback, error) {
	params := url.Values{
		"page":  {strconv.Itoa(max(page, 1))},
		"limit": {strconv.Itoa(FeedbackPageSize)},
		"sort":  {"date"},
		"order": {"desc"},
	}

	var resp FeedbackResponse
	target := c.endpoints.FeedbackURL + "/feedbacks/v1/" + strconv.FormatInt(wbID, 10)
	if err := c.http.GetJSON(ctx, target, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch feedbacks for %d: %w", wbID, err)
	}

	feedbacks := make([]models.Feedback, 0, len(resp.Feedbacks))
	for i := range resp.Feedbacks {
		feedbacks = append(feedbacks, toFeedback(wbID, &resp.Feedbacks[i]))
	}
	return feedbacks, nil
}

func (c *Client) listing(ctx context.Context, target string, params url.Values) ([]models.ListingItem, error) {
	var resp ListingResponse
	if err := c.http.GetJSON(ctx, target, params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	records := resp.Products()
	items := make([]models.ListingItem, 0, len(records))
	for i := range records {
		item := toListingItem(&records[i])
		if item.WBID == 0 {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func listingParams(page int) url.Values {
	params := commonParams()
	params.Set("page", strconv.Itoa(max(page, 1)))
	params.Set("limit", strconv.Itoa(ListingPageSize))
	return params
}
