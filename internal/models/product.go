package models

import (
	"fmt"
	"strings"
	"time"
)

const DefaultCategory = "Без категории"

type Product struct {
	WBID           int64         `json:"id"`
	Name           string        `json:"name"`
	Brand          string        `json:"brand"`
	Category       string        `json:"category"`
	Seller         Seller        `json:"seller"`
	Rating         float64       `json:"rating"`
	FeedbacksCount int           `json:"feedbacks_count"`
	Price          Price         `json:"price"`
	Stocks         map[int64]int `json:"stocks"`
	URL            string        `json:"url"`
	ScrapedAt      time.Time     `json:"scraped_at"`
}

type Seller struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Price is stored in rubles. Discount is a percentage rounded to two decimals.
type Price struct {
	Current  float64 `json:"current"`
	Original float64 `json:"original"`
	Discount float64 `json:"discount"`
}

// ListingItem is one entry of a category, seller or search result page.
type ListingItem struct {
	WBID       int64   `json:"id"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand"`
	SupplierID int64   `json:"supplier_id"`
	Rating     float64 `json:"rating"`
	Feedbacks  int     `json:"feedbacks"`
	Price      Price   `json:"price"`
}

type Feedback struct {
	ID          string    `json:"id"`
	ProductWBID int64     `json:"product_id"`
	UserID      string    `json:"user_id"`
	Rating      int       `json:"rating"`
	Text        string    `json:"text"`
	Likes       int       `json:"likes"`
	Dislikes    int       `json:"dislikes"`
	CreatedAt   time.Time `json:"created_at"`
}

// SellerDetails is the registration text scraped from a seller tooltip.
type SellerDetails struct {
	ProductWBID int64     `json:"product_id,omitempty"`
	ProductName string    `json:"product_name"`
	ProductURL  string    `json:"product_url"`
	SellerName  string    `json:"seller_name"`
	SellerInfo  string    `json:"seller_info"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

func NewProduct(wbID int64) *Product {
	return &Product{
		WBID:      wbID,
		Category:  DefaultCategory,
		Stocks:    make(map[int64]int),
		URL:       ProductURL(wbID),
		ScrapedAt: time.Now(),
	}
}

// ProductURL is the public product page for a marketplace id.
func ProductURL(wbID int64) string {
	return fmt.Sprintf("https://www.wildberries.ru/catalog/%d/detail.aspx", wbID)
}

func (p *Price) IsValid() bool {
	return p.Current >= 0 && p.Original >= p.Current
}

// TotalStock sums quantities over all warehouses.
func (p *Product) TotalStock() int {
	total := 0
	for _, qty := range p.Stocks {
		total += qty
	}
	return total
}

// FormatSellerInfo frames accepted registration text for output.
func FormatSellerInfo(text string) string {
	return "=== ИНФОРМАЦИЯ О ПРОДАВЦЕ ===\n" + strings.TrimSpace(text) + "\n============================"
}
