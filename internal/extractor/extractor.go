package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content is the structured signal pulled out of a page.
type Content struct {
	Title       string
	Description string
	Emails      []string
}

var (
	// emailCandidate deliberately swallows a trailing path so asset URLs like
	// "icon@example.com/logo.png" are seen whole and rejected below.
	emailCandidate = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}(?:/[^\s"'<>]*)?`)
	emailShape     = regexp.MustCompile(`(?i)^[a-z0-9._%+-]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}$`)
)

var assetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".bmp",
	".css", ".js", ".map", ".woff", ".woff2", ".ttf", ".eot",
}

// Extract parses HTML content and extracts title, meta description and emails.
// It never fails: a page with nothing useful yields an empty Content.
func Extract(htmlContent string) Content {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return Content{Emails: collectEmails(nil, htmlContent)}
	}

	var c Content

	doc.Find("title").EachWithBreak(func(i int, s *goquery.Selection) bool {
		c.Title = strings.TrimSpace(s.Text())
		return c.Title == ""
	})

	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		content, _ := s.Attr("content")
		c.Description = strings.TrimSpace(content)
		return false
	})

	var mailto []string
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		mailto = append(mailto, mailtoAddresses(href)...)
	})

	c.Emails = collectEmails(mailto, htmlContent)
	return c
}

// mailtoAddresses returns the addresses of a mailto: href with any query suffix removed.
func mailtoAddresses(href string) []string {
	href = strings.TrimSpace(href)
	if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
		return nil
	}
	addr := href[len("mailto:"):]
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		addr = addr[:i]
	}
	if unescaped, err := url.PathUnescape(addr); err == nil {
		addr = unescaped
	}

	var out []string
	for _, a := range strings.Split(addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func collectEmails(mailto []string, htmlContent string) []string {
	seen := make(map[string]struct{})
	emails := []string{}

	add := func(candidate string) {
		e := strings.ToLower(strings.TrimSpace(candidate))
		if !IsEmail(e) {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		emails = append(emails, e)
	}

	for _, m := range mailto {
		add(m)
	}
	for _, m := range emailCandidate.FindAllString(htmlContent, -1) {
		add(m)
	}
	return emails
}

// IsEmail reports whether s has a local@domain.tld shape and is not a static asset name.
func IsEmail(s string) bool {
	if !emailShape.MatchString(s) {
		return false
	}
	lower := strings.ToLower(s)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}
