package scraper

import (
	"context"
	"errors"
	"net/url"
)

var (
	ErrSellerNotFound = errors.New("seller element not found")
	ErrSellerPage     = errors.New("seller page not reachable")
	ErrNoSellerInfo   = errors.New("seller info lacks registration markers")
)

// JSONGetter fetches a JSON document and decodes it into out.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error
}

// Endpoints holds the base URLs of the public marketplace APIs.
type Endpoints struct {
	CardURL     string
	PriceURL    string
	CatalogURL  string
	SearchURL   string
	FeedbackURL string
}

const (
	ListingPageSize  = 100
	FeedbackPageSize = 10
)

// commonParams are sent with every catalog-style request.
func commonParams() url.Values {
	return url.Values{
		"appType":          {"1"},
		"couponsGeo":       {"12,3,18,15,21"},
		"curr":             {"rub"},
		"dest":             {"-1029256,-102269,-1278703,-1255563"},
		"emp":              {"0"},
		"lang":             {"ru"},
		"locale":           {"ru"},
		"pricemarginCoeff": {"1.0"},
		"reg":              {"1"},
		"regions":          {"80,64,83,4,38,33,70,82,69,68,86,75,30,40,48,1,22,66,31,71"},
		"sort":             {"popular"},
		"spp":              {"0"},
	}
}

func priceParams() url.Values {
	return url.Values{
		"spp":     {"0"},
		"regions": {"68,64,83,4,38,80,33,70,82,86,75,30,69,22,66,31,48,1,40,71"},
		"stores":  {"117673,122258,122259,125238,125239,125240,507,3158,117501,120602,120762,6158,121709,124731,130744,159402,2737,117986,1733,686,132043"},
	}
}
