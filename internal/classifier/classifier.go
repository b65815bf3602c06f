// Package classifier maps raw fetch faults onto the scrape error taxonomy.
package classifier

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/user/scraper-service/internal/domain"
)

// Classification is the outcome of classifying a fault.
type Classification struct {
	Kind        domain.ErrorKind
	ProxyStatus domain.ProxyOutcome
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

var (
	timeoutPatterns = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"etimedout",
		"err_timed_out",
	}
	dnsPatterns = []string{
		"no such host",
		"enotfound",
		"err_name_not_resolved",
		"server misbehaving",
		"temporary failure in name resolution",
	}
	refusedPatterns = []string{
		"connection refused",
		"econnrefused",
		"err_connection_refused",
		"err_proxy_connection_failed",
	}
	tlsPatterns = []string{
		"tls:",
		"tls handshake",
		"x509:",
		"certificate",
		"ssl",
		"err_cert_",
	}

	status403 = regexp.MustCompile(`\b403\b`)
	status404 = regexp.MustCompile(`\b404\b`)
	status5xx = regexp.MustCompile(`\b5\d\d\b`)

	urlPattern = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s"']+`)
)

// Classify maps err to exactly one ErrorKind. It depends only on err, so the
// same fault always yields the same classification.
func Classify(err error) Classification {
	kind := classifyKind(err)
	return Classification{Kind: kind, ProxyStatus: ProxyStatusFor(kind)}
}

func classifyKind(err error) domain.ErrorKind {
	if err == nil {
		return domain.KindUnknown
	}

	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		return kind
	}

	msg := faultText(err)

	if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) || containsAny(msg, timeoutPatterns) {
		return domain.KindTimeout
	}
	if containsAny(msg, dnsPatterns) {
		return domain.KindNotFound
	}
	if containsAny(msg, refusedPatterns) {
		return domain.KindConnectionRefused
	}
	if containsAny(msg, tlsPatterns) {
		return domain.KindSSLError
	}

	code := 0
	var sc StatusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	}
	switch {
	case code == 403 || (code == 0 && status403.MatchString(msg)):
		return domain.KindForbidden
	case code == 404 || (code == 0 && status404.MatchString(msg)):
		return domain.KindNotFound
	case (code >= 500 && code <= 599) || (code == 0 && status5xx.MatchString(msg)):
		return domain.KindServerError
	}
	return domain.KindUnknown
}

// ProxyStatusFor returns the proxy log outcome for a failure kind.
func ProxyStatusFor(kind domain.ErrorKind) domain.ProxyOutcome {
	switch kind {
	case domain.KindTimeout:
		return domain.ProxyTimeout
	case domain.KindForbidden, domain.KindSSLError:
		return domain.ProxyBanned
	default:
		return domain.ProxyFailed
	}
}

// faultText returns the lowercased fault message with the request URL and
// host removed, so a page's own address never decides its classification.
func faultText(err error) string {
	msg := err.Error()
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		msg = ue.Err.Error()
		if u, perr := url.Parse(ue.URL); perr == nil && u.Hostname() != "" {
			msg = strings.ReplaceAll(msg, u.Hostname(), "")
		}
	}
	return strings.ToLower(urlPattern.ReplaceAllString(msg, ""))
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
