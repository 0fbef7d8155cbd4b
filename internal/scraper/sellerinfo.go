package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/wildberries-parser/internal/antiblock"
	"github.com/maltedev/wildberries-parser/internal/browser"
	"github.com/maltedev/wildberries-parser/internal/models"
	"github.com/maltedev/wildberries-parser/internal/parser"
	"github.com/maltedev/wildberries-parser/internal/queue"
	"github.com/maltedev/wildberries-parser/internal/ratelimit"
)

const (
	maxEmptyPages = 3

	// maxProductRetries bounds how often a product whose page failed to load
	// goes back to the queue.
	maxProductRetries = 1
)

// SellerSink receives every accepted record, e.g. a CSV file.
type SellerSink interface {
	Write(d *models.SellerDetails) error
}

// SellerStore persists accepted records.
type SellerStore interface {
	SaveSellerDetails(ctx context.Context, d *models.SellerDetails) error
}

type SellerInfoOptions struct {
	Categories  []string
	MaxPages    int
	MaxProducts int
	Markers     []string
	Placeholder string
	Keywords    []string

	ProductDelay time.Duration
	PageDelay    time.Duration
	CategoryGap  time.Duration

	ScrollTimes int
	ScrollPause time.Duration
	ClickPause  time.Duration
}

func DefaultSellerInfoOptions() SellerInfoOptions {
	return SellerInfoOptions{
		MaxPages:     10,
		MaxProducts:  100,
		Markers:      []string{"ИНН", "ОГРН"},
		Placeholder:  "Продавайте на Wildberries",
		Keywords:     []string{"ИНН", "ОГРН", "регистрации", "предприниматель"},
		ProductDelay: 3 * time.Second,
		PageDelay:    3 * time.Second,
		CategoryGap:  4500 * time.Millisecond,
		ScrollTimes:  5,
		ScrollPause:  time.Second,
		ClickPause:   time.Second,
	}
}

// SellerInfoStats summarizes a crawl.
type SellerInfoStats struct {
	Pages     int
	Processed int
	Accepted  int
	Skipped   int
}

// SellerInfoScraper walks category pages in a browser, opens each product,
// follows its seller link and reads the registration tooltip.
type SellerInfoScraper struct {
	page   browser.Page
	nav    *browser.Navigator
	opts   SellerInfoOptions
	sink   SellerSink
	store  SellerStore
	seen   *queue.DedupQueue
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

func NewSellerInfoScraper(page browser.Page, nav *browser.Navigator, opts SellerInfoOptions, sink SellerSink, logger *slog.Logger) *SellerInfoScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SellerInfoScraper{
		page:   page,
		nav:    nav,
		opts:   opts,
		sink:   sink,
		seen:   queue.NewDedupQueue(),
		sleep:  ratelimit.Sleep,
		logger: logger.With("component", "seller_info"),
	}
}

// WithStore additionally saves accepted records to store.
func (s *SellerInfoScraper) WithStore(store SellerStore) *SellerInfoScraper {
	s.store = store
	return s
}

func (s *SellerInfoScraper) WithSleep(fn func(ctx context.Context, d time.Duration) error) *SellerInfoScraper {
	s.sleep = fn
	return s
}

// Run crawls the configured categories until MaxProducts products have been
// processed or every category is exhausted.
func (s *SellerInfoScraper) Run(ctx context.Context) (SellerInfoStats, error) {
	var stats SellerInfoStats

	for i, category := range s.opts.Categories {
		if s.budgetSpent(stats) {
			break
		}
		if i > 0 {
			if err := s.pause(ctx, s.opts.CategoryGap); err != nil {
				return stats, err
			}
		}

		s.logger.Info("Processing category", "index", i+1, "total", len(s.opts.Categories), "category", categoryID(category))
		if err := s.crawlCategory(ctx, category, &stats); err != nil {
			return stats, err
		}
	}

	s.logger.Info("Seller info crawl completed",
		"pages", stats.Pages,
		"processed", stats.Processed,
		"accepted", stats.Accepted,
		"skipped", stats.Skipped)
	return stats, nil
}

func (s *SellerInfoScraper) budgetSpent(stats SellerInfoStats) bool {
	return s.opts.MaxProducts > 0 && stats.Processed >= s.opts.MaxProducts
}

func (s *SellerInfoScraper) crawlCategory(ctx context.Context, category string, stats *SellerInfoStats) error {
	empty := 0

	for page := 1; page <= s.opts.MaxPages && empty < maxEmptyPages && !s.budgetSpent(*stats); page++ {
		if page > 1 {
			if err := s.pause(ctx, s.opts.PageDelay); err != nil {
				return err
			}
		}

		fresh, err := s.loadListing(ctx, PageURL(category, page))
		stats.Pages++
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("Failed to process category page", "url", category, "page", page, "error", err)
		}
		if fresh == 0 {
			empty++
			s.logger.Info("No new products on page", "page", page, "empty_pages", empty)
			continue
		}
		empty = 0

		if err := s.drain(ctx, stats); err != nil {
			return err
		}
	}
	return nil
}

// loadListing opens one category page and queues the unseen products on it.
func (s *SellerInfoScraper) loadListing(ctx context.Context, pageURL string) (int, error) {
	if err := s.nav.NavigateWithRetry(ctx, s.page, pageURL); err != nil {
		return 0, err
	}

	if err := browser.HumanizeScroll(ctx, s.page, s.opts.ScrollTimes, s.opts.ScrollPause, s.sleep); err != nil {
		return 0, err
	}
	s.clickShowMore(ctx)

	tasks, err := CollectProducts(s.page)
	if err != nil {
		return 0, err
	}

	fresh := 0
	for _, task := range tasks {
		added, err := s.seen.Push(task)
		if err != nil {
			return fresh, err
		}
		if added {
			fresh++
		}
	}
	s.logger.Info("Found products on page", "url", pageURL, "cards", len(tasks), "new", fresh, "queued", s.seen.Size())
	return fresh, nil
}

func (s *SellerInfoScraper) clickShowMore(ctx context.Context) {
	match, err := browser.ShowMoreCascade().First(s.page)
	if err != nil {
		return
	}
	if err := match.Element.ClickJS(); err != nil {
		s.logger.Debug("Failed to click show more", "error", err)
		return
	}
	if err := browser.HumanizeScroll(ctx, s.page, 3, s.opts.ScrollPause, s.sleep); err != nil {
		s.logger.Debug("Scroll after show more interrupted", "error", err)
	}
}

func (s *SellerInfoScraper) drain(ctx context.Context, stats *SellerInfoStats) error {
	for !s.budgetSpent(*stats) {
		task, err := s.seen.Pop(ctx)
		if errors.Is(err, queue.ErrQueueEmpty) {
			return nil
		}
		if err != nil {
			return err
		}

		if stats.Processed > 0 {
			if err := s.pause(ctx, s.opts.ProductDelay); err != nil {
				return err
			}
		}
		if task.Retries == 0 {
			stats.Processed++
		}

		details, err := s.ScrapeProduct(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if retryable(err) && task.Retries < maxProductRetries {
				s.logger.Info("Requeueing product", "url", task.URL, "error", err)
				if err := s.seen.Retry(task); err != nil {
					return err
				}
				continue
			}
			stats.Skipped++
			s.logger.Info("Skipping product", "url", task.URL, "reason", err)
			continue
		}
		if err := s.record(ctx, details); err != nil {
			return err
		}
		stats.Accepted++
	}
	return nil
}

// retryable reports whether err came from loading the product page rather
// than from the page content.
func retryable(err error) bool {
	return !errors.Is(err, ErrSellerNotFound) &&
		!errors.Is(err, ErrSellerPage) &&
		!errors.Is(err, ErrNoSellerInfo)
}

func (s *SellerInfoScraper) record(ctx context.Context, d *models.SellerDetails) error {
	if err := s.sink.Write(d); err != nil {
		return fmt.Errorf("failed to write seller details: %w", err)
	}
	if s.store != nil {
		if err := s.store.SaveSellerDetails(ctx, d); err != nil {
			s.logger.Error("Failed to save seller details", "url", d.ProductURL, "error", err)
		}
	}
	s.logger.Info("Saved seller info", "product", d.ProductName, "seller", d.SellerName)
	return nil
}

// ScrapeProduct opens the product page, reaches the seller page and reads
// the registration text. It returns ErrNoSellerInfo when the text carries
// none of the markers.
func (s *SellerInfoScraper) ScrapeProduct(ctx context.Context, task *queue.Task) (*models.SellerDetails, error) {
	if err := s.nav.NavigateWithRetry(ctx, s.page, task.URL); err != nil {
		return nil, fmt.Errorf("failed to open product: %w", err)
	}

	match, err := browser.SellerCascade(s.opts.Placeholder).First(s.page)
	if err != nil {
		return nil, ErrSellerNotFound
	}
	sellerName, _ := match.Element.Text()

	if err := s.followSeller(ctx, match.Element); err != nil {
		return nil, err
	}

	text := s.readSellerText(ctx, sellerName)
	if !AcceptSellerInfo(text, s.opts.Markers) {
		return nil, ErrNoSellerInfo
	}

	return &models.SellerDetails{
		ProductWBID: task.WBID,
		ProductName: task.Name,
		ProductURL:  task.URL,
		SellerName:  sellerName,
		SellerInfo:  models.FormatSellerInfo(text),
		ScrapedAt:   time.Now(),
	}, nil
}

// followSeller navigates the seller href, falling back to a native click, a
// script click and finally the first seller or brand link on the page.
func (s *SellerInfoScraper) followSeller(ctx context.Context, el browser.Element) error {
	if href, _ := el.Attr("href"); href != "" {
		if err := s.nav.NavigateWithRetry(ctx, s.page, browser.ResolveURL(s.page.URL(), href)); err == nil {
			return nil
		}
	} else if err := el.Click(); err == nil {
		return s.settle(ctx)
	} else if err := el.ClickJS(); err == nil {
		return s.settle(ctx)
	}

	link, err := browser.SellerLinkCascade().First(s.page)
	if err != nil {
		return ErrSellerPage
	}
	href, _ := link.Element.Attr("href")
	if err := s.nav.NavigateWithRetry(ctx, s.page, browser.ResolveURL(s.page.URL(), href)); err != nil {
		return fmt.Errorf("%w: %w", ErrSellerPage, err)
	}
	return nil
}

// readSellerText opens the registration tooltip and returns its text, or
// sellerName when the tooltip cannot be found.
func (s *SellerInfoScraper) readSellerText(ctx context.Context, sellerName string) string {
	trigger, err := browser.TooltipTriggerCascade().First(s.page)
	if err != nil {
		s.logger.Debug("No tooltip trigger, using seller name")
		return sellerName
	}

	if err := s.sleep(ctx, s.opts.ClickPause); err != nil {
		return sellerName
	}
	if err := trigger.Element.Click(); err != nil {
		if err := trigger.Element.ClickJS(); err != nil {
			s.logger.Debug("Failed to click tooltip trigger", "strategy", trigger.Strategy.Name, "error", err)
		}
	}
	if err := s.settle(ctx); err != nil {
		return sellerName
	}

	content, err := browser.TooltipContentCascade(s.opts.Keywords).First(s.page)
	if err != nil {
		s.logger.Debug("No tooltip content, using seller name")
		return sellerName
	}
	text, err := content.Element.Text()
	if err != nil {
		return sellerName
	}
	return text
}

func (s *SellerInfoScraper) settle(ctx context.Context) error {
	if s.nav.Settle <= 0 {
		return nil
	}
	return s.sleep(ctx, s.nav.Settle)
}

func (s *SellerInfoScraper) pause(ctx context.Context, base time.Duration) error {
	return s.sleep(ctx, antiblock.JitteredDelay(base))
}

// AcceptSellerInfo reports whether text carries at least one registration
// marker.
func AcceptSellerInfo(text string, markers []string) bool {
	return browser.ContainsAny(text, markers)
}

// PageURL appends the page parameter for pages after the first.
func PageURL(categoryURL string, page int) string {
	if page <= 1 {
		return categoryURL
	}
	sep := "?"
	if strings.Contains(categoryURL, "?") {
		sep = "&"
	}
	return categoryURL + sep + "page=" + strconv.Itoa(page)
}

// CollectProducts reads the product cards of the current listing page.
// Cards without a usable product URL are dropped.
func CollectProducts(page browser.Page) ([]*queue.Task, error) {
	cards, _, err := browser.ProductCardCascade().All(page)
	if err != nil {
		return nil, err
	}

	tasks := make([]*queue.Task, 0, len(cards))
	for i, card := range cards {
		task, ok := cardTask(page.URL(), card, i+1)
		if ok {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func cardTask(base string, card browser.Element, index int) (*queue.Task, bool) {
	productURL := cardURL(card)
	if productURL == "" {
		return nil, false
	}
	productURL = browser.ResolveURL(base, productURL)

	wbID, hasID := parser.ExtractProductID(productURL)
	if !hasID && !strings.Contains(productURL, "/detail.aspx") {
		return nil, false
	}

	key := productURL
	if hasID {
		key = strconv.FormatInt(wbID, 10)
	}

	return &queue.Task{
		Key:  key,
		WBID: wbID,
		URL:  productURL,
		Name: cardName(card, index),
	}, true
}

func cardURL(card browser.Element) string {
	if tag, _ := card.TagName(); tag == "a" {
		if href, _ := card.Attr("href"); href != "" {
			return href
		}
	} else if links, err := card.FindAll(browser.CSS, "a"); err == nil {
		for _, link := range links {
			href, _ := link.Attr("href")
			if strings.Contains(href, "/detail.aspx") || strings.Contains(href, "/catalog/") {
				return href
			}
		}
	}

	if nmID, _ := card.Attr("data-nm-id"); nmID != "" {
		if id, err := strconv.ParseInt(nmID, 10, 64); err == nil {
			return models.ProductURL(id)
		}
	}
	return ""
}

func cardName(card browser.Element, index int) string {
	for _, sel := range browser.CardNameSelectors {
		els, err := card.FindAll(browser.CSS, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		if text, _ := els[0].Text(); text != "" {
			return text
		}
	}
	if text, _ := card.Text(); text != "" {
		return parser.FirstLine(text)
	}
	return "Product " + strconv.Itoa(index)
}

// categoryID extracts a stable label for logging from a category URL.
func categoryID(categoryURL string) string {
	u, err := url.Parse(categoryURL)
	if err != nil {
		return categoryURL
	}
	return strings.Trim(u.Path, "/")
}
