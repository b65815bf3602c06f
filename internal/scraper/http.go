package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/scraper-service/internal/domain"
)

const maxBodyBytes = 10 << 20

// HTTPRetriever fetches pages with a plain HTTP GET.
type HTTPRetriever struct {
	timeout time.Duration
}

func NewHTTPRetriever(timeout time.Duration) *HTTPRetriever {
	return &HTTPRetriever{timeout: timeout}
}

// Retrieve issues a GET through p, or directly when p is nil.
func (h *HTTPRetriever) Retrieve(ctx context.Context, rawURL string, p *domain.ProxyEndpoint, userAgent string) (Page, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout: h.timeout,
	}
	if p != nil {
		transport.Proxy = http.ProxyURL(proxyURL(p))
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   h.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}
	return Page{HTML: string(body)}, nil
}

func proxyURL(p *domain.ProxyEndpoint) *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Addr()}
	if p.HasAuth() {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}
