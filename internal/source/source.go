// Package source holds the per-source descriptor table that drives URL shape
// checks, content fingerprinting and fetch strategy selection.
package source

import (
	"regexp"
	"sort"

	"github.com/user/scraper-service/internal/domain"
)

// Strategy names how a source is fetched.
type Strategy string

const (
	StrategyHTTP     Strategy = "http"
	StrategyBrowser  Strategy = "browser"
	StrategyProvider Strategy = "provider"
)

// Descriptor describes everything source-specific about a scrape.
type Descriptor struct {
	Source   domain.Source
	Platform string
	// URLPattern constrains the URL shape before any network call. Nil accepts any http(s) URL.
	URLPattern *regexp.Regexp
	// DomainPattern is matched against the URL host; a match is enough to accept the content.
	DomainPattern *regexp.Regexp
	// Fingerprints are lowercase markers, any of which confirms the platform in the HTML.
	Fingerprints []string
	Strategy     Strategy
}

// RequiresFingerprint reports whether fetched content must be checked against the platform.
func (d Descriptor) RequiresFingerprint() bool {
	return d.DomainPattern != nil || len(d.Fingerprints) > 0
}

var shopifyFingerprints = []string{
	"cdn.shopify.com",
	"shopify.theme",
	"myshopify.com",
}

var descriptors = map[domain.Source]Descriptor{
	domain.SourceGeneric: {
		Source:   domain.SourceGeneric,
		Platform: "Website",
		Strategy: StrategyHTTP,
	},
	domain.SourceWebsite: {
		Source:   domain.SourceWebsite,
		Platform: "Website",
		Strategy: StrategyBrowser,
	},
	domain.SourceShopify: {
		Source:        domain.SourceShopify,
		Platform:      "Shopify",
		DomainPattern: regexp.MustCompile(`(?i)(^|\.)myshopify\.com$`),
		Fingerprints:  shopifyFingerprints,
		Strategy:      StrategyBrowser,
	},
	domain.SourceShopifyProduct: {
		Source:        domain.SourceShopifyProduct,
		Platform:      "Shopify",
		URLPattern:    regexp.MustCompile(`(?i)^https?://[^/]+/(?:collections/[^/?#]+/)?products/[a-z0-9][a-z0-9_%-]*/?(?:[?#].*)?$`),
		DomainPattern: regexp.MustCompile(`(?i)(^|\.)myshopify\.com$`),
		Fingerprints:  shopifyFingerprints,
		Strategy:      StrategyHTTP,
	},
	domain.SourceWooCommerce: {
		Source:   domain.SourceWooCommerce,
		Platform: "WooCommerce",
		Fingerprints: []string{
			"wp-content/plugins/woocommerce",
			"woocommerce_params",
		},
		Strategy: StrategyHTTP,
	},
	domain.SourceEtsy: {
		Source:     domain.SourceEtsy,
		Platform:   "Etsy",
		URLPattern: regexp.MustCompile(`(?i)^https?://(?:www\.)?etsy\.com/(?:[a-z]{2}/)?shop/[^/?#]+/?(?:[?#].*)?$`),
		Strategy:   StrategyProvider,
	},
	domain.SourceAmazon: {
		Source:     domain.SourceAmazon,
		Platform:   "Amazon",
		URLPattern: regexp.MustCompile(`(?i)^https?://(?:www\.)?amazon\.[a-z]{2,3}(?:\.[a-z]{2})?/[^?#]+`),
		Strategy:   StrategyProvider,
	},
}

// Lookup returns the descriptor for s.
func Lookup(s domain.Source) (Descriptor, bool) {
	d, ok := descriptors[s]
	return d, ok
}

// All returns every descriptor ordered by source name.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
