package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/wildberries-parser/internal/models"
	"github.com/maltedev/wildberries-parser/internal/ratelimit"
	"github.com/maltedev/wildberries-parser/internal/storage"
)

type Mode string

const (
	ModeProduct  Mode = "product"
	ModeCategory Mode = "category"
	ModeSeller   Mode = "seller"
	ModeSearch   Mode = "search"
)

var (
	ErrUnknownMode   = errors.New("unknown mode")
	ErrMissingTarget = errors.New("missing target")
)

// ParseMode maps a CLI value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeProduct, ModeCategory, ModeSeller, ModeSearch:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Source is the marketplace client the runner reads from.
type Source interface {
	ProductDetail(ctx context.Context, wbID int64) (*models.Product, error)
	CategoryProducts(ctx context.Context, categoryID string, page int) ([]models.ListingItem, error)
	SellerProducts(ctx context.Context, sellerID int64, page int) ([]models.ListingItem, error)
	Search(ctx context.Context, query string, page int) ([]models.ListingItem, error)
	Feedbacks(ctx context.Context, wbID int64, page int) ([]models.Feedback, error)
}

// Store persists full product snapshots and their reviews.
type Store interface {
	SaveProduct(ctx context.Context, p *models.Product) (int64, error)
	SaveFeedback(ctx context.Context, productID int64, f *models.Feedback) (int64, error)
}

type Options struct {
	PageDelay    time.Duration
	ProductDelay time.Duration

	// FeedbackPages is the number of review pages saved in product mode.
	FeedbackPages int
}

func DefaultOptions() Options {
	return Options{
		PageDelay:    2 * time.Second,
		ProductDelay: 2 * time.Second,
	}
}

// Request selects what a run retrieves. ID is a product, category or seller
// id depending on Mode; Query is used by search.
type Request struct {
	Mode     Mode
	ID       string
	Query    string
	Pages    int
	SaveJSON bool
}

// Result summarizes a run.
type Result struct {
	Mode     Mode                 `json:"mode"`
	Listed   []models.ListingItem `json:"listed,omitempty"`
	Product  *models.Product      `json:"product,omitempty"`
	Saved    int                  `json:"saved"`
	Failed   int                  `json:"failed"`
	Snapshot string               `json:"snapshot,omitempty"`
}

// Runner coordinates listing pagination, per-product detail fetches and
// persistence. Requests are issued one at a time; item failures are logged
// and never abort a batch.
type Runner struct {
	source    Source
	store     Store
	snapshots *storage.SnapshotStore
	pages     ratelimit.RateLimiter
	products  ratelimit.RateLimiter
	opts      Options
	logger    *slog.Logger
}

func NewRunner(source Source, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:   source,
		pages:    ratelimit.NewFixedRateLimiter(opts.PageDelay),
		products: ratelimit.NewFixedRateLimiter(opts.ProductDelay),
		opts:     opts,
		logger:   logger.With("component", "pipeline"),
	}
}

// WithStore enables database persistence.
func (r *Runner) WithStore(store Store) *Runner {
	r.store = store
	return r
}

// WithSnapshots enables JSON snapshots.
func (r *Runner) WithSnapshots(snapshots *storage.SnapshotStore) *Runner {
	r.snapshots = snapshots
	return r
}

// Run validates req and dispatches it to the matching mode.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	pages := max(req.Pages, 1)

	switch req.Mode {
	case ModeProduct:
		wbID, err := parseID(req.ID)
		if err != nil {
			return nil, err
		}
		return r.ParseProduct(ctx, wbID, req.SaveJSON)

	case ModeCategory:
		id := strings.TrimSpace(req.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: category id is required", ErrMissingTarget)
		}
		return r.ParseCategory(ctx, id, pages, req.SaveJSON)

	case ModeSeller:
		sellerID, err := parseID(req.ID)
		if err != nil {
			return nil, err
		}
		return r.ParseSeller(ctx, sellerID, pages, req.SaveJSON)

	case ModeSearch:
		query := strings.TrimSpace(req.Query)
		if query == "" {
			return nil, fmt.Errorf("%w: search query is required", ErrMissingTarget)
		}
		return r.Search(ctx, query, pages, req.SaveJSON)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: id is required", ErrMissingTarget)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// ParseProduct fetches one product, stores it and optionally writes its JSON
// snapshot. A product that cannot be fetched yields a result without a
// product and no error.
func (r *Runner) ParseProduct(ctx context.Context, wbID int64, saveJSON bool) (*Result, error) {
	result := &Result{Mode: ModeProduct}

	p, err := r.fetchProduct(ctx, wbID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		result.Failed++
		return result, nil
	}
	result.Product = p

	if r.store != nil {
		if productID, ok := r.saveProduct(ctx, p); ok {
			result.Saved++
			if r.opts.FeedbackPages > 0 {
				r.saveFeedbacks(ctx, productID, p.WBID)
			}
		} else {
			result.Failed++
		}
	}

	if saveJSON && r.snapshots != nil {
		path, err := r.snapshots.SaveProduct(p)
		if err != nil {
			r.logger.Error("Failed to write product snapshot", "wb_id", wbID, "error", err)
		} else {
			result.Snapshot = path
			r.logger.Info("Product snapshot written", "wb_id", wbID, "path", path)
		}
	}

	return result, ctx.Err()
}

func (r *Runner) ParseCategory(ctx context.Context, categoryID string, pages int, saveJSON bool) (*Result, error) {
	fetch := func(ctx context.Context, page int) ([]models.ListingItem, error) {
		return r.source.CategoryProducts(ctx, categoryID, page)
	}
	save := func(items []models.ListingItem) (string, error) {
		return r.snapshots.SaveCategory(categoryID, items)
	}
	return r.runListing(ctx, ModeCategory, "category_id", categoryID, pages, saveJSON, fetch, save)
}

func (r *Runner) ParseSeller(ctx context.Context, sellerID int64, pages int, saveJSON bool) (*Result, error) {
	fetch := func(ctx context.Context, page int) ([]models.ListingItem, error) {
		return r.source.SellerProducts(ctx, sellerID, page)
	}
	save := func(items []models.ListingItem) (string, error) {
		return r.snapshots.SaveSeller(sellerID, items)
	}
	return r.runListing(ctx, ModeSeller, "seller_id", sellerID, pages, saveJSON, fetch, save)
}

func (r *Runner) Search(ctx context.Context, query string, pages int, saveJSON bool) (*Result, error) {
	fetch := func(ctx context.Context, page int) ([]models.ListingItem, error) {
		return r.source.Search(ctx, query, page)
	}
	save := func(items []models.ListingItem) (string, error) {
		return r.snapshots.SaveSearch(query, items)
	}
	return r.runListing(ctx, ModeSearch, "query", query, pages, saveJSON, fetch, save)
}

type pageFetcher func(ctx context.Context, page int) ([]models.ListingItem, error)

// runListing collects up to pages listing pages, writes the listing snapshot
// and, with a store configured, fetches and saves every listed product.
func (r *Runner) runListing(ctx context.Context, mode Mode, key string, target any, pages int, saveJSON bool,
	fetch pageFetcher, snapshot func([]models.ListingItem) (string, error)) (*Result, error) {
	logger := r.logger.With("mode", mode, key, target)
	logger.Info("Starting listing run", "pages", pages)

	items, err := r.collect(ctx, logger, pages, fetch)
	if err != nil {
		return nil, err
	}
	logger.Info("Listing collected", "products", len(items))

	result := &Result{Mode: mode, Listed: items}

	if saveJSON && r.snapshots != nil {
		path, err := snapshot(items)
		if err != nil {
			logger.Error("Failed to write listing snapshot", "error", err)
		} else {
			result.Snapshot = path
			logger.Info("Listing snapshot written", "path", path)
		}
	}

	if r.store == nil {
		return result, nil
	}

	for _, item := range items {
		if err := r.products.Wait(ctx); err != nil {
			return result, err
		}

		p, err := r.fetchProduct(ctx, item.WBID)
		if err != nil {
			return result, err
		}
		if p == nil {
			result.Failed++
			continue
		}
		if _, ok := r.saveProduct(ctx, p); ok {
			result.Saved++
		} else {
			result.Failed++
		}
	}

	logger.Info("Listing run finished", "saved", result.Saved, "failed", result.Failed)
	return result, nil
}

// collect walks pages until the limit, an empty page or a failed page.
func (r *Runner) collect(ctx context.Context, logger *slog.Logger, pages int, fetch pageFetcher) ([]models.ListingItem, error) {
	var all []models.ListingItem

	for page := 1; page <= pages; page++ {
		if err := r.pages.Wait(ctx); err != nil {
			return nil, err
		}

		items, err := fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Failed to fetch listing page", "page", page, "error", err)
			break
		}
		if len(items) == 0 {
			logger.Warn("Listing page is empty", "page", page)
			break
		}

		logger.Info("Listing page fetched", "page", page, "products", len(items))
		all = append(all, items...)
	}

	return all, nil
}

// fetchProduct returns nil when the product could not be retrieved. Only
// cancellation is reported as an error.
func (r *Runner) fetchProduct(ctx context.Context, wbID int64) (*models.Product, error) {
	p, err := r.source.ProductDetail(ctx, wbID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("Failed to fetch product", "wb_id", wbID, "error", err)
		return nil, nil
	}
	if p == nil {
		r.logger.Warn("Product has no data", "wb_id", wbID)
	}
	return p, nil
}

func (r *Runner) saveProduct(ctx context.Context, p *models.Product) (int64, bool) {
	productID, err := r.store.SaveProduct(ctx, p)
	if err != nil {
		r.logger.Error("Failed to save product", "wb_id", p.WBID, "error", err)
		return 0, false
	}
	r.logger.Info("Product saved", "wb_id", p.WBID, "product_id", productID)
	return productID, true
}

// saveFeedbacks stores up to FeedbackPages pages of reviews. Only product
// mode saves reviews.
func (r *Runner) saveFeedbacks(ctx context.Context, productID, wbID int64) {
	saved := 0
	for page := 1; page <= r.opts.FeedbackPages; page++ {
		if page > 1 {
			if err := r.pages.Wait(ctx); err != nil {
				return
			}
		}

		feedbacks, err := r.source.Feedbacks(ctx, wbID, page)
		if err != nil {
			r.logger.Warn("Failed to fetch feedbacks", "wb_id", wbID, "page", page, "error", err)
			break
		}
		if len(feedbacks) == 0 {
			break
		}

		for i := range feedbacks {
			if _, err := r.store.SaveFeedback(ctx, productID, &feedbacks[i]); err != nil {
				r.logger.Error("Failed to save feedback", "wb_id", wbID, "user_id", feedbacks[i].UserID, "error", err)
				continue
			}
			saved++
		}
	}
	r.logger.Info("Feedbacks saved", "wb_id", wbID, "count", saved)
}
