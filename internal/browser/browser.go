package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/wildberries-parser/internal/antiblock"
	"github.com/maltedev/wildberries-parser/internal/ratelimit"
)

var ErrBlocked = errors.New("request blocked by anti-bot page")

// Titles of the interstitial pages served instead of content when the
// marketplace suspects automation.
var blockedTitleMarkers = []string{"Почти готово", "Подозрительная активность", "Доступ ограничен"}

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        60 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
		TimezoneID:     "Europe/Moscow",
		Locale:         "ru-RU",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := map[string]string{"Accept-Language": opts.AcceptLanguage}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	// Hide the webdriver flag before any page script runs.
	err = context.AddInitScript(playwright.Script{
		Content: playwright.String(`Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`),
	})
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to add init script: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// NewPage opens a tab wrapped as a Page.
func (b *Browser) NewPage() (*PlaywrightPage, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	timeoutMs := float64(b.opts.Timeout.Milliseconds())
	page.SetDefaultTimeout(timeoutMs)

	return NewPlaywrightPage(page, timeoutMs), nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Navigator loads pages with retries and checks for anti-bot interstitials.
type Navigator struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Settle     time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *slog.Logger
}

func NewNavigator(maxRetries int, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Settle:     2 * time.Second,
		Sleep:      ratelimit.Sleep,
		Logger:     logger.With("component", "navigator"),
	}
}

// NavigateWithRetry loads url, retrying failed loads and blocked pages with
// backoff.
func (n *Navigator) NavigateWithRetry(ctx context.Context, page Page, url string) error {
	retries := n.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			n.Logger.Info("Retrying navigation", "attempt", i+1, "url", url)
			if err := n.Sleep(ctx, antiblock.Backoff(i-1, n.BaseDelay, n.MaxDelay)); err != nil {
				return err
			}
		}

		if err := page.Goto(ctx, url); err != nil {
			lastErr = err
			n.Logger.Warn("Navigation failed", "error", err, "attempt", i+1)
			continue
		}

		if err := n.Sleep(ctx, n.Settle); err != nil {
			return err
		}

		if err := CheckBlocked(page); err != nil {
			lastErr = err
			n.Logger.Warn("Blocked page detected", "url", url, "attempt", i+1)
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", retries, lastErr)
}

// CheckBlocked returns ErrBlocked when page shows an anti-bot interstitial.
func CheckBlocked(page Page) error {
	title, err := page.Title()
	if err != nil {
		return fmt.Errorf("failed to get page title: %w", err)
	}
	for _, marker := range blockedTitleMarkers {
		if strings.Contains(title, marker) {
			return fmt.Errorf("%w: %q", ErrBlocked, title)
		}
	}
	return nil
}

// HumanizeScroll scrolls down times steps of 500 to 1000 pixels with a short
// pause between steps, which also triggers lazy-loaded product cards.
func HumanizeScroll(ctx context.Context, page Page, times int, pause time.Duration, sleep func(context.Context, time.Duration) error) error {
	for i := 0; i < times; i++ {
		if err := page.Scroll(ctx, 500+rand.IntN(501)); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if err := sleep(ctx, antiblock.JitteredDelay(pause)); err != nil {
			return err
		}
	}
	return nil
}
