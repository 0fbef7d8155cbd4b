package scraper

import (
	"math"
	"strings"
	"time"

	"github.com/maltedev/wildberries-parser/internal/models"
	"github.com/maltedev/wildberries-parser/internal/parser"
)

// NormalizePrice converts kopeck prices to rubles. The discount is
// round((1 - current/original) * 100, 2) when original > 0 and
// current < original, otherwise 0.
func NormalizePrice(salePriceU, priceU int64) models.Price {
	current := float64(salePriceU) / 100
	original := float64(priceU) / 100

	discount := 0.0
	if original > 0 && current < original {
		discount = math.Round((1-current/original)*100*100) / 100
	}

	return models.Price{
		Current:  current,
		Original: original,
		Discount: discount,
	}
}

// RecordPrice reads salePriceU and priceU from a record. A missing priceU
// means the item is not discounted.
func RecordPrice(r *ProductRecord) models.Price {
	sale := r.SalePriceU.Int64()
	orig := int64(r.PriceU.Or(float64(sale)))
	return NormalizePrice(sale, orig)
}

// AggregateStocks sums quantities of all size variants per warehouse.
func AggregateStocks(sizes []SizeRecord) map[int64]int {
	stocks := make(map[int64]int)
	for _, size := range sizes {
		for _, s := range size.Stocks {
			if !s.Wh.Valid {
				continue
			}
			stocks[s.Wh.Int64()] += s.Qty.Int()
		}
	}
	return stocks
}

// CategoryName prefers subj.name, then entity, then the default category.
func CategoryName(r *ProductRecord) string {
	if r.Subj != nil {
		if name := strings.TrimSpace(r.Subj.Name.String()); name != "" {
			return name
		}
	}
	if entity := strings.TrimSpace(r.Entity.String()); entity != "" {
		return entity
	}
	return models.DefaultCategory
}

func toListingItem(r *ProductRecord) models.ListingItem {
	return models.ListingItem{
		WBID:       r.WBID(),
		Name:       parser.CleanText(r.Name.String()),
		Brand:      parser.CleanText(r.Brand.String()),
		SupplierID: r.SupplierID.Int64(),
		Rating:     r.RatingValue(),
		Feedbacks:  r.Feedbacks.Int(),
		Price:      RecordPrice(r),
	}
}

func toProduct(wbID int64, r *ProductRecord) *models.Product {
	p := models.NewProduct(wbID)
	p.Name = parser.CleanText(r.Name.String())
	p.Brand = parser.CleanText(r.Brand.String())
	p.Category = CategoryName(r)
	p.Seller = models.Seller{
		ID:   r.SupplierID.Int64(),
		Name: parser.CleanText(r.SellerName()),
	}
	p.Rating = r.RatingValue()
	p.FeedbacksCount = r.Feedbacks.Int()
	p.Stocks = AggregateStocks(r.Sizes)
	return p
}

func toFeedback(wbID int64, r *FeedbackRecord) models.Feedback {
	f := models.Feedback{
		ID:          r.ID.String(),
		ProductWBID: wbID,
		UserID:      r.UserID(),
		Rating:      r.ProductValuation.Int(),
		Text:        parser.CleanText(r.Text.String()),
	}

	if r.Votes != nil {
		f.Likes = r.Votes.Pluses.Int()
		f.Dislikes = r.Votes.Minuses.Int()
	}

	switch {
	case r.CreatedTimestamp.Valid && r.CreatedTimestamp.Value > 0:
		f.CreatedAt = time.UnixMilli(r.CreatedTimestamp.Int64()).UTC()
	case r.CreatedDate != "":
		if t, err := time.Parse(time.RFC3339, r.CreatedDate.String()); err == nil {
			f.CreatedAt = t.UTC()
		}
	}

	return f
}
