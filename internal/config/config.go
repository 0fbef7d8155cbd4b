package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/maltedev/wildberries-parser/internal/database"
)

type Config struct {
	Server     ServerConfig
	HTTP       HTTPConfig
	Endpoints  EndpointsConfig
	Scraper    ScraperConfig
	Browser    BrowserConfig
	SellerInfo SellerInfoConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Outbox     OutboxConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// HTTPConfig controls the JSON request executor.
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	UserAgents []string
}

// EndpointsConfig holds base URLs of the public marketplace endpoints.
type EndpointsConfig struct {
	CardURL     string
	PriceURL    string
	CatalogURL  string
	SearchURL   string
	FeedbackURL string
}

type ScraperConfig struct {
	PageDelay    time.Duration
	ProductDelay time.Duration
	DataDir      string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type SellerInfoConfig struct {
	Markers      []string
	Placeholder  string
	Keywords     []string
	Categories   []string
	MaxPages     int
	MaxProducts  int
	OutputDir    string
	ProductDelay time.Duration
	PageDelay    time.Duration
	CategoryGap  time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Stream       string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		HTTP: HTTPConfig{
			Timeout:    getDurationOrDefault("REQUEST_TIMEOUT", 10*time.Second),
			MaxRetries: getIntOrDefault("MAX_RETRIES", 3),
			RetryDelay: getDurationOrDefault("RETRY_DELAY", 2*time.Second),
			MaxDelay:   getDurationOrDefault("RETRY_MAX_DELAY", 60*time.Second),
			UserAgents: getStringSliceOrDefault("USER_AGENTS", defaultUserAgents()),
		},
		Endpoints: EndpointsConfig{
			CardURL:     getEnvOrDefault("WB_CARD_URL", "https://card.wb.ru"),
			PriceURL:    getEnvOrDefault("WB_PRICE_URL", "https://wbxcatalog-ru.wildberries.ru"),
			CatalogURL:  getEnvOrDefault("WB_CATALOG_URL", "https://catalog.wb.ru"),
			SearchURL:   getEnvOrDefault("WB_SEARCH_URL", "https://search.wb.ru"),
			FeedbackURL: getEnvOrDefault("WB_FEEDBACK_URL", "https://feedbacks2.wb.ru"),
		},
		Scraper: ScraperConfig{
			PageDelay:    getDurationOrDefault("PAGE_DELAY", 2*time.Second),
			ProductDelay: getDurationOrDefault("PRODUCT_DELAY", 2*time.Second),
			DataDir:      getEnvOrDefault("DATA_DIR", "data"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 60*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
		},
		SellerInfo: SellerInfoConfig{
			Markers:      getStringSliceOrDefault("SELLER_INFO_MARKERS", []string{"ИНН", "ОГРН"}),
			Placeholder:  getEnvOrDefault("SELLER_PLACEHOLDER", "Продавайте на Wildberries"),
			Keywords:     getStringSliceOrDefault("SELLER_INFO_KEYWORDS", []string{"ИНН", "ОГРН", "регистрации", "предприниматель"}),
			Categories:   getStringSliceOrDefault("SELLER_INFO_CATEGORIES", DefaultCategories()),
			MaxPages:     getIntOrDefault("SELLER_INFO_MAX_PAGES", 10),
			MaxProducts:  getIntOrDefault("SELLER_INFO_MAX_PRODUCTS", 100),
			OutputDir:    getEnvOrDefault("SELLER_INFO_OUTPUT_DIR", "sellers_info"),
			ProductDelay: getDurationOrDefault("SELLER_INFO_PRODUCT_DELAY", 3*time.Second),
			PageDelay:    getDurationOrDefault("SELLER_INFO_PAGE_DELAY", 3*time.Second),
			CategoryGap:  getDurationOrDefault("SELLER_INFO_CATEGORY_DELAY", 4500*time.Millisecond),
		},
		Database: DatabaseConfig{
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "wb_parser"),
			Password:    getEnvOrDefault("DB_PASSWORD", "your_password"),
			DBName:      getEnvOrDefault("DB_NAME", "wildberries_parser"),
			SSLMode:     getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 1)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdle: getDurationOrDefault("DB_MAX_CONN_IDLE", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Outbox: OutboxConfig{
			PollInterval: getDurationOrDefault("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getIntOrDefault("OUTBOX_BATCH_SIZE", 100),
			Stream:       getEnvOrDefault("OUTBOX_STREAM", "stream:wb_products"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
			File:   getEnvOrDefault("LOG_FILE", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}

	if c.HTTP.RetryDelay < 0 || c.HTTP.MaxDelay < 0 {
		return fmt.Errorf("RETRY_DELAY and RETRY_MAX_DELAY must not be negative")
	}

	if c.HTTP.RetryDelay > c.HTTP.MaxDelay {
		return fmt.Errorf("RETRY_DELAY cannot be greater than RETRY_MAX_DELAY")
	}

	if len(c.HTTP.UserAgents) == 0 {
		return fmt.Errorf("USER_AGENTS must contain at least one entry")
	}

	if len(c.SellerInfo.Markers) == 0 {
		return fmt.Errorf("SELLER_INFO_MARKERS must contain at least one marker")
	}

	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}

	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1")
	}

	return nil
}

// PoolConfig maps the settings onto the pgx pool configuration.
func (d DatabaseConfig) PoolConfig() database.Config {
	return database.Config{
		Host:        d.Host,
		Port:        d.Port,
		User:        d.User,
		Password:    d.Password,
		Database:    d.DBName,
		SSLMode:     d.SSLMode,
		MaxConns:    d.MaxConns,
		MaxConnLife: d.MaxConnLife,
		MaxConnIdle: d.MaxConnIdle,
	}
}

// DefaultCategories lists the catalog sections crawled for seller details.
func DefaultCategories() []string {
	return []string{
		"https://www.wildberries.ru/catalog/dom-i-dacha/kuhnya/poryadok-na-kuhne",
		"https://www.wildberries.ru/catalog/dom-i-dacha/kuhnya/stolovye-pribory",
		"https://www.wildberries.ru/catalog/dom-i-dacha/kuhnya/posuda-dlya-prigotovleniya",
		"https://www.wildberries.ru/catalog/dom-i-dacha/kuhnya/chayniki",
		"https://www.wildberries.ru/catalog/bytovaya-tehnika/tehnika-dlya-kuhni",
		"https://www.wildberries.ru/catalog/krasota/uhod-za-kozhey/uhod-za-litsom",
		"https://www.wildberries.ru/catalog/elektronika/tehnika-dlya-doma",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationOrDefault accepts Go durations ("2s") and bare seconds ("2").
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	}
}
