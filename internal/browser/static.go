package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/maltedev/wildberries-parser/internal/antiblock"
)

const maxPageBytes = 8 << 20

// Loader returns the HTML served at url.
type Loader func(ctx context.Context, url string) (string, error)

// MapLoader serves pages from memory, keyed by absolute URL.
func MapLoader(pages map[string]string) Loader {
	return func(_ context.Context, u string) (string, error) {
		body, ok := pages[u]
		if !ok {
			return "", fmt.Errorf("no page for %s", u)
		}
		return body, nil
	}
}

// HTTPLoader fetches pages without a browser, rotating the user agent on
// every request. Script-rendered content is not available this way.
func HTTPLoader(client *http.Client, userAgents []string, acceptLanguage string) Loader {
	return func(ctx context.Context, u string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", antiblock.RandomUserAgent(userAgents))
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if acceptLanguage != "" {
			req.Header.Set("Accept-Language", acceptLanguage)
		}

		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return "", fmt.Errorf("failed to read body: %w", err)
		}
		return string(body), nil
	}
}

// StaticPage implements Page over parsed HTML. CSS selectors run through
// goquery, XPath through htmlquery. Clicking a link navigates to its href;
// other clicks are no-ops because there is no script engine.
type StaticPage struct {
	load Loader
	url  string
	doc  *goquery.Document
}

func NewStaticPage(load Loader) *StaticPage {
	return &StaticPage{load: load}
}

// StaticPageFromHTML builds a page already positioned at pageURL.
func StaticPageFromHTML(pageURL, body string) (*StaticPage, error) {
	p := &StaticPage{load: MapLoader(map[string]string{pageURL: body})}
	if err := p.Goto(context.Background(), pageURL); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *StaticPage) Goto(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := p.load(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	p.url = rawURL
	p.doc = doc
	return nil
}

func (p *StaticPage) URL() string {
	return p.url
}

func (p *StaticPage) Title() (string, error) {
	if p.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *StaticPage) Scroll(context.Context, int) error {
	return nil
}

func (p *StaticPage) FindAll(kind Kind, selector string) ([]Element, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return p.find(p.doc.Selection, kind, selector)
}

func (p *StaticPage) find(scope *goquery.Selection, kind Kind, selector string) ([]Element, error) {
	var nodes []*html.Node

	switch kind {
	case CSS:
		m, err := cascadia.Compile(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid css selector %q: %w", selector, err)
		}
		nodes = scope.FindMatcher(m).Nodes
	case XPath:
		for _, root := range scope.Nodes {
			found, err := htmlquery.QueryAll(root, selector)
			if err != nil {
				return nil, fmt.Errorf("invalid xpath %q: %w", selector, err)
			}
			nodes = append(nodes, found...)
		}
	default:
		return nil, fmt.Errorf("unsupported selector kind %s", kind)
	}

	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		els = append(els, &staticElement{page: p, sel: p.doc.FindNodes(n)})
	}
	return els, nil
}

type staticElement struct {
	page *StaticPage
	sel  *goquery.Selection
}

var invisibleTags = map[string]bool{
	"head": true, "script": true, "style": true, "title": true,
	"template": true, "noscript": true, "meta": true, "link": true,
}

// Visible approximates rendering: the element and its ancestors must not be
// hidden by attribute, aria-hidden or inline style.
func (e *staticElement) Visible() (bool, error) {
	for n := e.sel.Get(0); n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if invisibleTags[n.Data] {
			return false, nil
		}
		for _, a := range n.Attr {
			switch a.Key {
			case "hidden":
				return false, nil
			case "aria-hidden":
				if strings.EqualFold(a.Val, "true") {
					return false, nil
				}
			case "style":
				style := strings.ToLower(strings.ReplaceAll(a.Val, " ", ""))
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false, nil
				}
			}
		}
	}
	return true, nil
}

func (e *staticElement) Text() (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *staticElement) Attr(name string) (string, error) {
	return e.sel.AttrOr(name, ""), nil
}

func (e *staticElement) TagName() (string, error) {
	return strings.ToLower(goquery.NodeName(e.sel)), nil
}

func (e *staticElement) FindAll(kind Kind, selector string) ([]Element, error) {
	if kind == XPath {
		selector = relativeXPath(selector)
	}
	return e.page.find(e.sel, kind, selector)
}

func (e *staticElement) Click() error {
	href := e.sel.AttrOr("href", "")
	if href == "" {
		return nil
	}
	return e.page.Goto(context.Background(), ResolveURL(e.page.url, href))
}

func (e *staticElement) ClickJS() error {
	return e.Click()
}

// relativeXPath scopes an absolute expression to the context node, which
// is how element-level lookups behave in a browser.
func relativeXPath(expr string) string {
	if strings.HasPrefix(expr, "//") {
		return "." + expr
	}
	return expr
}

// ResolveURL resolves href against base; unparseable input is returned as is.
func ResolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	return b.ResolveReference(ref).String()
}
