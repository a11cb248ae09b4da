package scanner

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/validation-engine/internal/model"
)

var digitsOnly = regexp.MustCompile(`[^\d]`)

// GenericExtractor is the defensive fallback DOMExtractor callers use for
// platforms the registry has no scanner for (§4.3): a short list of generic
// selectors that work across a surprising number of storefronts, good
// enough to avoid a hard failure but not a substitute for a real
// per-platform extractor.
type GenericExtractor struct{}

func (GenericExtractor) IsNotFound(doc *goquery.Document, _ string) bool {
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	return title == "" || strings.Contains(title, "404") || strings.Contains(title, "not found")
}

func (GenericExtractor) Extract(doc *goquery.Document, pageURL string) (*model.ScannedData, error) {
	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("[itemprop=name]").First().Text())
	}

	priceText := doc.Find("[itemprop=price]").First().AttrOr("content", "")
	if priceText == "" {
		priceText = doc.Find("[itemprop=price]").First().Text()
	}
	price := parsePrice(priceText)

	thumb := doc.Find("[itemprop=image]").First().AttrOr("content", "")
	if thumb == "" {
		thumb, _ = doc.Find("img").First().Attr("src")
	}

	base, _ := url.Parse(pageURL)
	thumb = ResolveThumbnail(base, thumb)

	original, discounted := NormalizePrices(price, price)

	return &model.ScannedData{
		ProductName:     name,
		Thumbnail:       thumb,
		OriginalPrice:   original,
		DiscountedPrice: discounted,
		SaleStatus:      model.SaleStatusOnSale,
	}, nil
}

func parsePrice(raw string) int {
	digits := digitsOnly.ReplaceAllString(raw, "")
	if digits == "" {
		return 0
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}
