package domain

// Source is the platform a lead URL is declared to belong to.
type Source string

const (
	SourceGeneric        Source = "generic"
	SourceWebsite        Source = "website"
	SourceShopify        Source = "shopify"
	SourceShopifyProduct Source = "shopify_product"
	SourceWooCommerce    Source = "woocommerce"
	SourceEtsy           Source = "etsy"
	SourceAmazon         Source = "amazon"
)
