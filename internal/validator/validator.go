package validator

import (
	"net/url"
	"strings"

	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/source"
	"github.com/user/scraper-service/pkg/utils"
)

// ValidateRequest resolves the descriptor for req and checks the URL shape.
// It runs before any proxy is taken or network call is made.
func ValidateRequest(req domain.ScrapeRequest) (source.Descriptor, error) {
	d, ok := source.Lookup(req.Source)
	if !ok {
		return source.Descriptor{}, domain.NewValidationError("Unsupported source %q", req.Source)
	}
	if !utils.IsHTTPURL(req.URL) {
		return d, domain.NewValidationError("Invalid URL: %s", req.URL)
	}
	if d.URLPattern != nil && !d.URLPattern.MatchString(req.URL) {
		return d, domain.NewValidationError("Invalid %s URL: %s", d.Platform, req.URL)
	}
	return d, nil
}

// ValidateContent confirms fetched HTML belongs to the declared platform.
// A URL host matching the platform domain or any fingerprint in the HTML is enough.
func ValidateContent(d source.Descriptor, rawURL, html string) error {
	if !d.RequiresFingerprint() {
		return nil
	}
	if d.DomainPattern != nil {
		if u, err := url.Parse(rawURL); err == nil && d.DomainPattern.MatchString(u.Hostname()) {
			return nil
		}
	}
	lower := strings.ToLower(html)
	for _, fp := range d.Fingerprints {
		if strings.Contains(lower, fp) {
			return nil
		}
	}
	return domain.NewValidationError("Not a %s site", d.Platform)
}
