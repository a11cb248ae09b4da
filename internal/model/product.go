package model

import "github.com/google/uuid"

// ProductSet is one catalog record from the product database. It is
// read-only to the validation engine; the only write path back to it is
// the Update node (see internal/pipeline).
type ProductSet struct {
	ProductSetID      uuid.UUID  `json:"product_set_id"`
	ProductID         string     `json:"product_id"`
	BrandID           string     `json:"brand_id"`
	LinkURL           string     `json:"link_url"`
	ProductName       string     `json:"product_name"`
	Thumbnail         string     `json:"thumbnail"`
	OriginalPrice     int        `json:"original_price"`
	DiscountedPrice   int        `json:"discounted_price"`
	SaleStatus        SaleStatus `json:"sale_status"`
	AutoCrawled       bool       `json:"auto_crawled"`
	Platform          Platform   `json:"platform"`
}

// ScannedData is what a Scanner produces for one product. A nil pointer
// means the platform reported the product missing (see ErrProductNotFound).
type ScannedData struct {
	ProductName     string     `json:"product_name"`
	Thumbnail       string     `json:"thumbnail"`
	OriginalPrice   int        `json:"original_price"`
	DiscountedPrice int        `json:"discounted_price"`
	SaleStatus      SaleStatus `json:"sale_status"`
}
