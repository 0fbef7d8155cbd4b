package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrNotFound = errors.New("element not found")

// Kind selects the selector language of a Strategy.
type Kind int

const (
	CSS Kind = iota
	XPath
)

func (k Kind) String() string {
	switch k {
	case CSS:
		return "css"
	case XPath:
		return "xpath"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Element is a DOM node located on a page.
type Element interface {
	Visible() (bool, error)
	Text() (string, error)
	// Attr returns "" when the attribute is absent.
	Attr(name string) (string, error)
	TagName() (string, error)
	FindAll(kind Kind, selector string) ([]Element, error)
	Click() error
	ClickJS() error
}

// Finder locates elements in a document or under an element.
type Finder interface {
	FindAll(kind Kind, selector string) ([]Element, error)
}

// Predicate decides whether a visible element is acceptable.
type Predicate func(Element) bool

// Strategy is one step of a Cascade. Limit caps how many raw matches are
// inspected; zero means all.
type Strategy struct {
	Name     string
	Kind     Kind
	Selector string
	Limit    int
	Accept   Predicate
}

func CSSStrategy(selector string) Strategy {
	return Strategy{Name: selector, Kind: CSS, Selector: selector}
}

func XPathStrategy(selector string) Strategy {
	return Strategy{Name: selector, Kind: XPath, Selector: selector}
}

// Match is the element a cascade settled on together with the strategy
// that produced it.
type Match struct {
	Element  Element
	Strategy Strategy
}

// Cascade tries its strategies in order and stops at the first one that
// yields an acceptable visible element. It keeps no state between calls.
type Cascade struct {
	name       string
	strategies []Strategy
	accept     Predicate
	logger     *slog.Logger
}

func NewCascade(name string, strategies ...Strategy) *Cascade {
	return &Cascade{
		name:       name,
		strategies: strategies,
		logger:     slog.Default().With("component", "cascade", "cascade", name),
	}
}

// WithAccept returns a copy of the cascade that additionally requires p
// for every candidate.
func (c *Cascade) WithAccept(p Predicate) *Cascade {
	cp := *c
	cp.strategies = append([]Strategy(nil), c.strategies...)
	cp.accept = All(c.accept, p)
	return &cp
}

func (c *Cascade) Name() string {
	return c.name
}

// First returns the first accepted element of the first productive strategy.
func (c *Cascade) First(f Finder) (Match, error) {
	for _, s := range c.strategies {
		for _, el := range c.candidates(f, s) {
			if c.accepts(s, el) {
				c.logger.Debug("Strategy matched", "strategy", s.Name, "kind", s.Kind)
				return Match{Element: el, Strategy: s}, nil
			}
		}
	}
	return Match{}, fmt.Errorf("%s: %w", c.name, ErrNotFound)
}

// All returns every accepted element produced by the first strategy that
// yields at least one.
func (c *Cascade) All(f Finder) ([]Element, Strategy, error) {
	for _, s := range c.strategies {
		var accepted []Element
		for _, el := range c.candidates(f, s) {
			if c.accepts(s, el) {
				accepted = append(accepted, el)
			}
		}
		if len(accepted) > 0 {
			c.logger.Debug("Strategy matched", "strategy", s.Name, "kind", s.Kind, "count", len(accepted))
			return accepted, s, nil
		}
	}
	return nil, Strategy{}, fmt.Errorf("%s: %w", c.name, ErrNotFound)
}

func (c *Cascade) candidates(f Finder, s Strategy) []Element {
	els, err := f.FindAll(s.Kind, s.Selector)
	if err != nil {
		c.logger.Debug("Strategy failed", "strategy", s.Name, "error", err)
		return nil
	}
	if s.Limit > 0 && len(els) > s.Limit {
		els = els[:s.Limit]
	}
	return els
}

func (c *Cascade) accepts(s Strategy, el Element) bool {
	visible, err := el.Visible()
	if err != nil || !visible {
		return false
	}
	if s.Accept != nil && !s.Accept(el) {
		return false
	}
	if c.accept != nil && !c.accept(el) {
		return false
	}
	return true
}

// All combines predicates with logical AND.
func All(preds ...Predicate) Predicate {
	return func(el Element) bool {
		for _, p := range preds {
			if p != nil && !p(el) {
				return false
			}
		}
		return true
	}
}

// Any combines predicates with logical OR.
func Any(preds ...Predicate) Predicate {
	return func(el Element) bool {
		for _, p := range preds {
			if p != nil && p(el) {
				return true
			}
		}
		return false
	}
}

func NonEmptyText(el Element) bool {
	text, err := el.Text()
	return err == nil && strings.TrimSpace(text) != ""
}

// TextNot rejects elements whose trimmed text equals any of values.
func TextNot(values ...string) Predicate {
	return func(el Element) bool {
		text, err := el.Text()
		if err != nil {
			return false
		}
		text = strings.TrimSpace(text)
		for _, v := range values {
			if text == v {
				return false
			}
		}
		return true
	}
}

func TextContainsAny(keywords ...string) Predicate {
	return func(el Element) bool {
		text, err := el.Text()
		if err != nil {
			return false
		}
		return ContainsAny(text, keywords)
	}
}

// AttrContainsAny matches when the attribute value contains one of parts,
// compared case-insensitively.
func AttrContainsAny(name string, parts ...string) Predicate {
	return func(el Element) bool {
		v, err := el.Attr(name)
		if err != nil || v == "" {
			return false
		}
		v = strings.ToLower(v)
		for _, p := range parts {
			if strings.Contains(v, strings.ToLower(p)) {
				return true
			}
		}
		return false
	}
}

func HasAttr(name string) Predicate {
	return func(el Element) bool {
		v, err := el.Attr(name)
		return err == nil && v != ""
	}
}

// HrefNotContaining rejects links whose href contains any of parts.
func HrefNotContaining(parts ...string) Predicate {
	return func(el Element) bool {
		href, err := el.Attr("href")
		if err != nil || href == "" {
			return false
		}
		for _, p := range parts {
			if strings.Contains(href, p) {
				return false
			}
		}
		return true
	}
}

func ContainsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
