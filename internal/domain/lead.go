package domain

// LeadStatus is the lead lifecycle state the lead service persists.
type LeadStatus string

const (
	LeadPending     LeadStatus = "pending"
	LeadScraped     LeadStatus = "scraped"
	LeadScrapFailed LeadStatus = "scrap_failed"
)

// Lead is the subset of a lead record the scraper reads and fills in.
type Lead struct {
	ID          string     `json:"id,omitempty"`
	URL         string     `json:"url"`
	Source      Source     `json:"source"`
	Status      LeadStatus `json:"status"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Emails      []string   `json:"emails,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Apply merges a final scrape result into the lead and transitions its status.
func (l *Lead) Apply(res ScrapeResult) {
	if !res.Succeeded() {
		l.Status = LeadScrapFailed
		l.Error = res.ErrorMessage
		return
	}
	l.Status = LeadScraped
	l.Title = res.Title
	l.Description = res.Description
	l.Emails = res.Emails
	l.Error = ""
}

// Request returns the scrape request for the lead.
func (l *Lead) Request() ScrapeRequest {
	return ScrapeRequest{URL: l.URL, Source: l.Source}
}
