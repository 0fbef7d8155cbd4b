package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const DateTimeLayout = "2006-01-02 15:04:05"

var (
	priceNumber    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	catalogIDRegex = regexp.MustCompile(`/catalog/(\d+)/`)
)

// CleanText strips markup and collapses runs of whitespace, including
// non-breaking spaces, into single spaces.
func CleanText(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}

	return strings.Join(strings.Fields(s), " ")
}

// ParsePrice coerces the price representations seen in marketplace payloads
// to a float. Numbers pass through; strings yield their first number, with
// spaces used as thousands separators ignored. Anything unparseable yields 0.
func ParsePrice(v any) float64 {
	switch p := v.(type) {
	case nil:
		return 0
	case float64:
		return p
	case float32:
		return float64(p)
	case int:
		return float64(p)
	case int64:
		return float64(p)
	case int32:
		return float64(p)
	case json.Number:
		f, err := p.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		return parsePriceString(p)
	default:
		return 0
	}
}

func parsePriceString(s string) float64 {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	num := priceNumber.FindString(s)
	if num == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.Replace(num, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return f
}

func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// SafeQueryName turns a search query into a file name: letters, digits,
// spaces and underscores survive, the result is trimmed and spaces become
// underscores.
func SafeQueryName(query string) string {
	var b strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// ExtractProductID returns the numeric id from a product URL such as
// https://www.wildberries.ru/catalog/12345/detail.aspx.
func ExtractProductID(rawURL string) (int64, bool) {
	m := catalogIDRegex.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// FirstLine returns the first non-empty trimmed line of s.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
