package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maltedev/wildberries-parser/internal/antiblock"
	"github.com/maltedev/wildberries-parser/internal/browser"
	"github.com/maltedev/wildberries-parser/internal/config"
	"github.com/maltedev/wildberries-parser/internal/database"
	"github.com/maltedev/wildberries-parser/internal/parser"
	"github.com/maltedev/wildberries-parser/internal/scraper"
	"github.com/maltedev/wildberries-parser/internal/storage"
	"github.com/maltedev/wildberries-parser/pkg/logger"
)

type flags struct {
	maxProducts int
	categories  string
	maxPages    int
	outDir      string
	noDB        bool
	headless    bool
	static      bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var f flags
	flag.IntVar(&f.maxProducts, "max-products", cfg.SellerInfo.MaxProducts, "Stop after this many processed products")
	flag.StringVar(&f.categories, "categories", "", "Comma separated category URLs (default SELLER_INFO_CATEGORIES)")
	flag.IntVar(&f.maxPages, "max-pages", cfg.SellerInfo.MaxPages, "Maximum pages per category")
	flag.StringVar(&f.outDir, "out-dir", cfg.SellerInfo.OutputDir, "Directory for the CSV file")
	flag.BoolVar(&f.noDB, "no-db", false, "Do not save to the database")
	flag.BoolVar(&f.headless, "headless", cfg.Browser.Headless, "Run the browser headless")
	flag.BoolVar(&f.static, "static", false, "Fetch pages over plain HTTP instead of a browser")
	flag.Parse()

	log, closer, err := logger.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, f, log)
	stop()

	if err != nil {
		log.Error("Seller info crawl failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
	closer.Close()
}

// run owns every resource of the crawl so that its deferred cleanup runs
// on all exit paths, including a failed browser or database start.
func run(ctx context.Context, cfg *config.Config, f flags, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	opts := scraper.DefaultSellerInfoOptions()
	opts.Categories = cfg.SellerInfo.Categories
	if f.categories != "" {
		opts.Categories = splitList(f.categories)
	}
	opts.MaxPages = f.maxPages
	opts.MaxProducts = f.maxProducts
	opts.Markers = cfg.SellerInfo.Markers
	opts.Placeholder = cfg.SellerInfo.Placeholder
	opts.Keywords = cfg.SellerInfo.Keywords
	opts.ProductDelay = cfg.SellerInfo.ProductDelay
	opts.PageDelay = cfg.SellerInfo.PageDelay
	opts.CategoryGap = cfg.SellerInfo.CategoryGap

	started := time.Now()
	csvPath := storage.SellerCSVPath(f.outDir, started)
	sink, err := storage.NewSellerCSV(csvPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	var page browser.Page
	if f.static {
		client := &http.Client{Timeout: cfg.HTTP.Timeout}
		page = browser.NewStaticPage(browser.HTTPLoader(client, cfg.HTTP.UserAgents, cfg.Browser.AcceptLanguage))
	} else {
		browserOpts := browser.DefaultOptions()
		browserOpts.Headless = f.headless
		browserOpts.Timeout = cfg.Browser.Timeout
		browserOpts.UserAgent = antiblock.RandomUserAgent(cfg.HTTP.UserAgents)
		browserOpts.ViewportWidth = cfg.Browser.ViewportWidth
		browserOpts.ViewportHeight = cfg.Browser.ViewportHeight
		browserOpts.AcceptLanguage = cfg.Browser.AcceptLanguage
		browserOpts.TimezoneID = cfg.Browser.TimezoneID
		browserOpts.Locale = cfg.Browser.Locale

		b, err := browser.New(browserOpts)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		defer b.Close()

		pwPage, err := b.NewPage()
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
		page = pwPage
	}

	s := scraper.NewSellerInfoScraper(page, browser.NewNavigator(cfg.HTTP.MaxRetries, log), opts, sink, log)

	if !f.noDB {
		db, err := database.New(ctx, cfg.Database.PoolConfig())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		s.WithStore(database.NewRepository(db, log))
	}

	log.Info("Starting seller info crawl",
		"categories", len(opts.Categories),
		"max_products", opts.MaxProducts,
		"max_pages", opts.MaxPages,
		"output", csvPath)

	stats, err := s.Run(ctx)

	fmt.Printf("Started %s, finished %s\n", parser.FormatDateTime(started), parser.FormatDateTime(time.Now()))
	fmt.Printf("Processed %d products, accepted %d, skipped %d across %d pages\n",
		stats.Processed, stats.Accepted, stats.Skipped, stats.Pages)
	fmt.Printf("Results written to %s (%d rows)\n", sink.Path(), sink.Rows())

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
