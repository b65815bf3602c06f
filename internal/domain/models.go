package domain

import (
	"net"
	"strconv"
	"time"
)

// ProxyStatus is the admin-managed lifecycle state of a proxy endpoint.
type ProxyStatus string

const (
	ProxyActive   ProxyStatus = "active"
	ProxyInactive ProxyStatus = "inactive"
	ProxyError    ProxyStatus = "error"
)

// ProxyEndpoint is a row of the proxy directory. It is read-only to the scraper.
type ProxyEndpoint struct {
	ID                int64
	Host              string
	Port              int
	Username          string
	Password          string
	Status            ProxyStatus
	AvgResponseTimeMS int
	ErrorCount24h     int
	UpdatedAt         time.Time
}

// Addr returns host:port.
func (p ProxyEndpoint) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// HasAuth reports whether the endpoint carries proxy credentials.
func (p ProxyEndpoint) HasAuth() bool {
	return p.Username != ""
}

// ProxyHealth is the operator view of a proxy: its directory state plus the
// failures counted in the current window.
type ProxyHealth struct {
	Host              string      `json:"host"`
	Port              int         `json:"port"`
	Status            ProxyStatus `json:"status"`
	AvgResponseTimeMS int         `json:"avg_response_time_ms"`
	RecentErrors      int64       `json:"recent_errors"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// ScrapeRequest is the payload handed over by the lead service.
type ScrapeRequest struct {
	URL    string `json:"url"`
	Source Source `json:"source"`
}

// ScrapeResult carries either extracted fields or a classified error, never both.
type ScrapeResult struct {
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Emails       []string  `json:"emails,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
}

// Succeeded reports whether the result is a success payload.
func (r ScrapeResult) Succeeded() bool {
	return r.ErrorKind == ""
}

// Err returns the failure as a *ScrapeError, or nil on success.
func (r ScrapeResult) Err() error {
	if r.Succeeded() {
		return nil
	}
	return &ScrapeError{Kind: r.ErrorKind, Message: r.ErrorMessage}
}

// Success builds a success result.
func Success(title, description string, emails []string) ScrapeResult {
	return ScrapeResult{Title: title, Description: description, Emails: emails}
}

// Failure builds a failure result from a classified error.
func Failure(kind ErrorKind, message string) ScrapeResult {
	return ScrapeResult{ErrorKind: kind, ErrorMessage: message}
}

// ProxyOutcome is the status column of a proxy log row.
type ProxyOutcome string

const (
	ProxySuccess ProxyOutcome = "success"
	ProxyFailed  ProxyOutcome = "failed"
	ProxyBanned  ProxyOutcome = "banned"
	ProxyTimeout ProxyOutcome = "timeout"
)

// ProxyLogEntry records one network attempt through a proxy.
type ProxyLogEntry struct {
	ProxyHost  string
	ProxyPort  int
	ProxyIP    string
	Source     Source
	URL        string
	Status     ProxyOutcome
	DurationMS int64
	Error      string
	CreatedAt  time.Time
}

// ScrapeOutcome is the status column of a scraper log row.
type ScrapeOutcome string

const (
	ScrapeSuccess ScrapeOutcome = "success"
	ScrapeFail    ScrapeOutcome = "fail"
)

// ScraperLogEntry records one top-level fetch invocation.
type ScraperLogEntry struct {
	Source     Source
	URL        string
	DurationMS int64
	Status     ScrapeOutcome
	Error      string
	CreatedAt  time.Time
}

// AttemptStatus is the observable status of a single retry attempt.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptError   AttemptStatus = "error"
	AttemptWaiting AttemptStatus = "waiting"
)

// AttemptState is one entry of the per-operation attempt history.
type AttemptState struct {
	Attempt int           `json:"attempt"`
	Status  AttemptStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}
