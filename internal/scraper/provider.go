package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/scraper-service/internal/classifier"
	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/extractor"
	"github.com/user/scraper-service/internal/provider"
	"github.com/user/scraper-service/internal/source"
	"github.com/user/scraper-service/pkg/utils"
)

// fetchFromProvider delegates a marketplace source to the data provider. No
// proxy is involved, so only the scrape log is written.
func (s *Scraper) fetchFromProvider(ctx context.Context, d source.Descriptor, rawURL string) domain.ScrapeResult {
	if s.provider == nil {
		return domain.Failure(domain.KindUnknown, fmt.Sprintf("no data provider configured for %s", d.Platform))
	}

	query := utils.QueryTerm(rawURL)
	if query == "" {
		return domain.Failure(domain.KindValidation, fmt.Sprintf("Invalid %s URL: %s", d.Platform, rawURL))
	}

	items, err := s.provider.Search(ctx, d.Platform, query)
	if errors.Is(err, provider.ErrEmptyResult) || (err == nil && len(items) == 0) {
		return domain.Failure(domain.KindScrapeFailed, fmt.Sprintf("No %s results found for %q", d.Platform, query))
	}
	if err != nil {
		return domain.Failure(classifier.Classify(err).Kind, err.Error())
	}

	var title, description string
	seen := make(map[string]struct{})
	emails := make([]string, 0)
	for _, it := range items {
		if title == "" {
			title = strings.TrimSpace(it.Title)
		}
		if description == "" {
			description = strings.TrimSpace(it.Description)
		}
		for _, e := range it.Emails {
			e = strings.ToLower(strings.TrimSpace(e))
			if !extractor.IsEmail(e) {
				continue
			}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			emails = append(emails, e)
		}
	}
	return domain.Success(title, description, emails)
}
