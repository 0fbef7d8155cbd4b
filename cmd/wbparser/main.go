package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/wildberries-parser/internal/config"
	"github.com/maltedev/wildberries-parser/internal/database"
	"github.com/maltedev/wildberries-parser/internal/fetch"
	"github.com/maltedev/wildberries-parser/internal/pipeline"
	"github.com/maltedev/wildberries-parser/internal/scraper"
	"github.com/maltedev/wildberries-parser/internal/storage"
	"github.com/maltedev/wildberries-parser/pkg/logger"
)

func main() {
	var (
		mode      = flag.String("mode", "", "Mode: product, category, seller or search")
		id        = flag.String("id", "", "Product, category or seller id")
		query     = flag.String("query", "", "Search query")
		pages     = flag.Int("pages", 1, "Number of listing pages to fetch")
		noDB      = flag.Bool("no-db", false, "Do not save to the database")
		saveJSON  = flag.Bool("json", false, "Write JSON snapshots")
		feedbacks = flag.Int("feedbacks", 0, "Pages of reviews to save in product mode")
		dataDir   = flag.String("data-dir", "", "Directory for JSON snapshots (default DATA_DIR or data)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logger.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	m, err := pipeline.ParseMode(*mode)
	if err != nil {
		log.Error("Invalid mode", "error", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := fetch.NewExecutor(fetch.Options{
		MaxRetries: cfg.HTTP.MaxRetries,
		BaseDelay:  cfg.HTTP.RetryDelay,
		MaxDelay:   cfg.HTTP.MaxDelay,
		Timeout:    cfg.HTTP.Timeout,
		UserAgents: cfg.HTTP.UserAgents,
	}, log)

	client := scraper.NewClient(executor, scraper.Endpoints{
		CardURL:     cfg.Endpoints.CardURL,
		PriceURL:    cfg.Endpoints.PriceURL,
		CatalogURL:  cfg.Endpoints.CatalogURL,
		SearchURL:   cfg.Endpoints.SearchURL,
		FeedbackURL: cfg.Endpoints.FeedbackURL,
	}, log)

	runner := pipeline.NewRunner(client, pipeline.Options{
		PageDelay:     cfg.Scraper.PageDelay,
		ProductDelay:  cfg.Scraper.ProductDelay,
		FeedbackPages: *feedbacks,
	}, log)

	if *saveJSON {
		dir := *dataDir
		if dir == "" {
			dir = cfg.Scraper.DataDir
		}
		runner.WithSnapshots(storage.NewSnapshotStore(dir))
	}

	if !*noDB {
		db, err := database.New(ctx, cfg.Database.PoolConfig())
		if err != nil {
			log.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}

		runner.WithStore(database.NewRepository(db, log).WithStream(cfg.Outbox.Stream))
	}

	result, err := runner.Run(ctx, pipeline.Request{
		Mode:     m,
		ID:       *id,
		Query:    *query,
		Pages:    *pages,
		SaveJSON: *saveJSON,
	})
	if err != nil {
		log.Error("Run failed", "mode", m, "error", err)
		os.Exit(1)
	}

	log.Info("Run finished",
		"mode", m,
		"listed", len(result.Listed),
		"saved", result.Saved,
		"failed", result.Failed,
		"snapshot", result.Snapshot)

	if m == pipeline.ModeProduct && result.Product == nil {
		log.Error("Product data could not be retrieved", "id", *id)
		os.Exit(1)
	}

	summary, _ := json.MarshalIndent(struct {
		Mode   pipeline.Mode `json:"mode"`
		Listed int           `json:"listed"`
		Saved  int           `json:"saved"`
		Failed int           `json:"failed"`
	}{m, len(result.Listed), result.Saved, result.Failed}, "", "  ")
	fmt.Println(string(summary))
}
