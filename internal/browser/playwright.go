package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Page is a navigable document that elements can be looked up in.
type Page interface {
	Finder
	Goto(ctx context.Context, url string) error
	URL() string
	Title() (string, error)
	// Scroll moves the viewport down by dy pixels.
	Scroll(ctx context.Context, dy int) error
}

const elementTimeoutMs = 5000

// PlaywrightPage adapts a live playwright page to Page.
type PlaywrightPage struct {
	page      playwright.Page
	timeoutMs float64
}

func NewPlaywrightPage(page playwright.Page, timeoutMs float64) *PlaywrightPage {
	if timeoutMs <= 0 {
		timeoutMs = 60000
	}
	return &PlaywrightPage{page: page, timeoutMs: timeoutMs}
}

func (p *PlaywrightPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(p.timeoutMs),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *PlaywrightPage) URL() string {
	return p.page.URL()
}

func (p *PlaywrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *PlaywrightPage) Scroll(ctx context.Context, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy))
	return err
}

func (p *PlaywrightPage) FindAll(kind Kind, selector string) ([]Element, error) {
	return locateAll(p.page.Locator(engineSelector(kind, selector)))
}

func engineSelector(kind Kind, selector string) string {
	if kind == XPath {
		return "xpath=" + selector
	}
	return "css=" + selector
}

func locateAll(loc playwright.Locator) ([]Element, error) {
	items, err := loc.All()
	if err != nil {
		return nil, err
	}

	els := make([]Element, 0, len(items))
	for _, item := range items {
		els = append(els, &playwrightElement{loc: item})
	}
	return els, nil
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) Visible() (bool, error) {
	return e.loc.IsVisible()
}

func (e *playwrightElement) Text() (string, error) {
	text, err := e.loc.InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(elementTimeoutMs),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *playwrightElement) Attr(name string) (string, error) {
	return e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(elementTimeoutMs),
	})
}

func (e *playwrightElement) TagName() (string, error) {
	v, err := e.loc.Evaluate("el => el.tagName.toLowerCase()", nil)
	if err != nil {
		return "", err
	}
	tag, _ := v.(string)
	return tag, nil
}

func (e *playwrightElement) FindAll(kind Kind, selector string) ([]Element, error) {
	if kind == XPath {
		selector = relativeXPath(selector)
	}
	return locateAll(e.loc.Locator(engineSelector(kind, selector)))
}

func (e *playwrightElement) Click() error {
	return e.loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(elementTimeoutMs),
	})
}

func (e *playwrightElement) ClickJS() error {
	_, err := e.loc.Evaluate("el => el.click()", nil)
	return err
}
