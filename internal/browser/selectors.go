package browser

// Section slugs of top-level catalog links, which are never product pages.
var categorySlugs = []string{
	"/zhenshchinam", "/muzhchinam", "/detyam", "/dom-i-dacha",
	"/krasota", "/aksessuary", "/elektronika",
}

// SellerLinkXPath finds any seller or brand page link.
const SellerLinkXPath = "//a[contains(@href, '/seller/') or contains(@href, '/brands/')]"

// ShowMoreXPath finds the pagination button of category pages.
const ShowMoreXPath = "//button[contains(text(), 'Показать ещё')] | //button[contains(text(), 'Загрузить ещё')] | //a[contains(text(), 'Показать ещё')]"

// Card detail selectors, tried in order inside a product card.
var CardNameSelectors = []string{".product-card__name", ".goods-name", "span[class*='name']", ".card__title"}

func ProductCardCascade() *Cascade {
	strategies := []Strategy{
		{Name: "detail links", Kind: XPath, Selector: "//a[contains(@href, '/detail.aspx')]"},
		{Name: "data-nm-id", Kind: XPath, Selector: "//*[@data-nm-id]"},
	}

	for _, sel := range []string{
		".product-card__wrapper",
		".product-card",
		".j-card-item",
		"article[class*='product-card']",
		".card-cell",
		".catalog-card",
		"a[class*='product-card__main']",
		".j-card",
		"a.product-card__img",
	} {
		strategies = append(strategies, CSSStrategy(sel))
	}

	for _, xp := range []string{
		"//div[contains(@class, 'product-card')]",
		"//article[contains(@class, 'product')]",
		"//a[contains(@href, '/catalog/') and contains(@href, '/detail.aspx')]",
		"//a[contains(@class, 'product-card__main')]",
	} {
		strategies = append(strategies, XPathStrategy(xp))
	}

	strategies = append(strategies, Strategy{
		Name:     "filtered catalog links",
		Kind:     XPath,
		Selector: "//a[contains(@href, '/catalog/')]",
		Accept:   HrefNotContaining(categorySlugs...),
	})

	return NewCascade("product-card", strategies...)
}

// SellerCascade locates the seller or brand element of a product page. The
// placeholder text of the "sell on the marketplace" banner is never accepted.
func SellerCascade(placeholder string) *Cascade {
	var strategies []Strategy

	for _, sel := range []string{
		".seller-info__name",
		"span[class*='seller-info']",
		"a[href*='/seller/']",
		".seller__name",
		"a[class*='seller']",
		"div[class*='seller'] a",
		"div[class*='seller'] span",
		"span[class*='brand']",
		"a[class*='brand']",
		".brand__info",
		"a[href*='/brands/']",
		"*[class*='seller']",
		"*[class*='vendor']",
		"*[class*='brand']",
	} {
		strategies = append(strategies, CSSStrategy(sel))
	}

	for _, xp := range []string{
		"//span[contains(@class, 'seller')]",
		"//a[contains(@href, '/seller/')]",
		"//a[contains(@href, '/brands/')]",
		"//*[contains(@class, 'seller')]//a",
		"//*[contains(text(), 'Продавец')]/..//a",
		"//*[contains(text(), 'Бренд')]/..//a",
		"//a[contains(@class, 'seller')]",
	} {
		strategies = append(strategies, XPathStrategy(xp))
	}

	return NewCascade("seller", strategies...).WithAccept(All(NonEmptyText, TextNot(placeholder)))
}

// TooltipTriggerCascade locates the info icon that opens the seller
// registration tooltip.
func TooltipTriggerCascade() *Cascade {
	var strategies []Strategy

	for _, sel := range []string{
		".seller-details__tip-info",
		"span[class*='seller-details__tip']",
		"span[class*='tip-info']",
		".seller__tip",
		"span[class*='info']",
		"div[class*='seller'] span",
		".info-icon",
		".info__icon",
		"i[class*='info']",
		"*[title*='информац']",
		"*[data-tip-selector]",
	} {
		strategies = append(strategies, CSSStrategy(sel))
	}

	for _, xp := range []string{
		"//span[contains(@class, 'tip')]",
		"//span[contains(@class, 'info')]",
		"//i[contains(@class, 'info')]",
		"//*[contains(@class, 'tip-info')]",
		"//*[contains(@title, 'информац')]",
		"//*[contains(@class, 'tooltip')]",
		"//span[contains(@class, 'seller-details')]",
		"//*[@data-tip-selector]",
	} {
		strategies = append(strategies, XPathStrategy(xp))
	}

	strategies = append(strategies, Strategy{
		Name:     "icon scan",
		Kind:     XPath,
		Selector: "//i | //span[string-length(text()) < 5] | //*[contains(@class, 'icon')]",
		Limit:    10,
		Accept:   Any(AttrContainsAny("class", "info", "tip"), HasAttr("title")),
	})

	return NewCascade("tooltip-trigger", strategies...)
}

// TooltipContentCascade locates the opened tooltip. The last resort scans
// text elements for any of keywords.
func TooltipContentCascade(keywords []string) *Cascade {
	var strategies []Strategy

	for _, sel := range []string{
		".tooltip_content",
		"div[class*='tooltip']",
		"div[class*='popup']",
		".tippy-content",
		".popover-content",
		".popover-inner",
		"div[class*='popover']",
		"div[class*='modal']",
		"div[role='tooltip']",
		".seller-details__tooltip",
		"div[class*='tooltip-content']",
		"div[class*='tip-content']",
	} {
		strategies = append(strategies, CSSStrategy(sel))
	}

	for _, xp := range []string{
		"//div[contains(@class, 'tooltip')]",
		"//div[contains(@class, 'popover')]",
		"//div[contains(@class, 'popup')]",
		"//div[@role='tooltip']",
		"//div[contains(@class, 'modal')][contains(., 'ИНН')]",
		"//div[contains(@class, 'modal')][contains(., 'ОГРН')]",
		"//div[contains(@class, 'tippy')]",
	} {
		strategies = append(strategies, XPathStrategy(xp))
	}

	strategies = append(strategies, Strategy{
		Name:     "keyword scan",
		Kind:     XPath,
		Selector: "//*[string-length(text()) > 0]",
		Limit:    30,
		Accept:   TextContainsAny(keywords...),
	})

	return NewCascade("tooltip-content", strategies...).WithAccept(NonEmptyText)
}

// ShowMoreCascade locates a visible "show more" button.
func ShowMoreCascade() *Cascade {
	return NewCascade("show-more", Strategy{Name: "show more", Kind: XPath, Selector: ShowMoreXPath})
}

// SellerLinkCascade is the last resort for reaching a seller page.
func SellerLinkCascade() *Cascade {
	return NewCascade("seller-link", Strategy{Name: "seller link", Kind: XPath, Selector: SellerLinkXPath, Accept: HasAttr("href")})
}
