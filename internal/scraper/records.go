package scraper

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/maltedev/wildberries-parser/internal/parser"
)

// Number decodes a JSON number, numeric string or null. Formatted strings
// such as "1 234,50" go through parser.ParsePrice. Anything else, including
// NaN and infinities, leaves it invalid instead of failing the whole
// document.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] != '"' {
		if f, err := strconv.ParseFloat(string(b), 64); err == nil && finite(f) {
			*n = Number{Value: f, Valid: true}
		}
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return nil
	}
	str = strings.TrimSpace(str)

	if f, err := strconv.ParseFloat(str, 64); err == nil {
		if finite(f) {
			*n = Number{Value: f, Valid: true}
		}
		return nil
	}
	if strings.IndexFunc(str, unicode.IsDigit) >= 0 {
		*n = Number{Value: parser.ParsePrice(str), Valid: true}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (n Number) Int64() int64 {
	return int64(n.Value)
}

func (n Number) Int() int {
	return int(n.Value)
}

// Or returns the value, or fallback when invalid.
func (n Number) Or(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

// Text decodes a JSON string; numbers keep their literal form and other
// shapes decode to "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*t = Text(s)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*t = Text(b)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// List decodes a JSON array. Any other shape decodes to an empty list.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	*l = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '[' {
		return nil
	}

	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	*l = items
	return nil
}

// CardResponse is the product detail and pricing payload: data.products.
type CardResponse struct {
	Data *CardData `json:"data"`
}

type CardData struct {
	Products List[ProductRecord] `json:"products"`
}

// UnmarshalJSON leaves d empty unless b is an object.
func (d *CardData) UnmarshalJSON(b []byte) error {
	type plain CardData
	var p plain
	*d = CardData{}
	if decodeObject(b, &p) {
		*d = CardData(p)
	}
	return nil
}

func decodeObject(b []byte, v any) bool {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

func (r *CardResponse) First() (*ProductRecord, bool) {
	if r == nil || r.Data == nil || len(r.Data.Products) == 0 {
		return nil, false
	}
	return &r.Data.Products[0], true
}

// ListingResponse is the category, seller and search payload.
type ListingResponse = CardResponse

func (r *CardResponse) Products() []ProductRecord {
	if r == nil || r.Data == nil {
		return nil
	}
	return r.Data.Products
}

type ProductRecord struct {
	ID           Number           `json:"id"`
	NmID         Number           `json:"nmId"`
	Name         Text             `json:"name"`
	Brand        Text             `json:"brand"`
	SupplierID   Number           `json:"supplierId"`
	SupplierName Text             `json:"supplierName"`
	Supplier     Text             `json:"supplier"`
	Rating       Number           `json:"rating"`
	ReviewRating Number           `json:"reviewRating"`
	Feedbacks    Number           `json:"feedbacks"`
	Subj         *SubjRecord      `json:"subj"`
	Entity       Text             `json:"entity"`
	SalePriceU   Number           `json:"salePriceU"`
	PriceU       Number           `json:"priceU"`
	Sizes        List[SizeRecord] `json:"sizes"`
}

type SubjRecord struct {
	Name Text `json:"name"`
}

type SizeRecord struct {
	Name   Text              `json:"name"`
	Stocks List[StockRecord] `json:"stocks"`
}

type StockRecord struct {
	Wh  Number `json:"wh"`
	Qty Number `json:"qty"`
}

// WBID returns id, falling back to nmId.
func (p *ProductRecord) WBID() int64 {
	if p.ID.Valid && p.ID.Value > 0 {
		return p.ID.Int64()
	}
	return p.NmID.Int64()
}

func (p *ProductRecord) SellerName() string {
	if p.SupplierName != "" {
		return p.SupplierName.String()
	}
	return p.Supplier.String()
}

// RatingValue prefers rating and falls back to reviewRating.
func (p *ProductRecord) RatingValue() float64 {
	if p.Rating.Valid {
		return p.Rating.Value
	}
	return p.ReviewRating.Or(0)
}

// FeedbackResponse is the review list payload: feedbacks.
type FeedbackResponse struct {
	Feedbacks List[FeedbackRecord] `json:"feedbacks"`
}

type FeedbackRecord struct {
	ID               Text   `json:"id"`
	GlobalUserID     Text   `json:"globalUserId"`
	WBUserID         Text   `json:"wbUserId"`
	ProductValuation Number `json:"productValuation"`
	Text             Text   `json:"text"`
	Votes            *struct {
		Pluses  Number `json:"pluses"`
		Minuses Number `json:"minuses"`
	} `json:"votes"`
	CreatedTimestamp Number `json:"createdTimestamp"`
	CreatedDate      Text   `json:"createdDate"`
}

// UserID returns the reviewer id. Anonymous reviews fall back to the review
// id so that each one stays a separate row.
func (f *FeedbackRecord) UserID() string {
	switch {
	case f.GlobalUserID != "":
		return f.GlobalUserID.String()
	case f.WBUserID != "":
		return f.WBUserID.String()
	default:
		return f.ID.String()
	}
}
