package storage

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/scraper-service/internal/domain"
)

// Runs against a real database only when TEST_POSTGRES_URL is set.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Ping(ctx))
	return store
}

func TestPostgresStoreTelemetryRoundTrip(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.InsertProxyLog(ctx, domain.ProxyLogEntry{
		ProxyHost: "10.0.0.1", ProxyPort: 8080, ProxyIP: "10.0.0.1",
		Source: domain.SourceGeneric, URL: "https://acme.test",
		Status: domain.ProxyTimeout, DurationMS: 15000, Error: "timeout", CreatedAt: now,
	}))
	require.NoError(t, store.InsertScraperLog(ctx, domain.ScraperLogEntry{
		Source: domain.SourceGeneric, URL: "https://acme.test",
		DurationMS: 15010, Status: domain.ScrapeFail, Error: "timeout", CreatedAt: now,
	}))

	proxies, err := store.ListActive(ctx)
	require.NoError(t, err)
	for _, p := range proxies {
		require.Equal(t, domain.ProxyActive, p.Status)
	}
}

func TestLogArgsCoverEveryPlaceholder(t *testing.T) {
	placeholder := regexp.MustCompile(`@([a-z_]+)`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		sql  string
		args map[string]any
	}{
		{"proxy_logs", insertProxyLogSQL, proxyLogArgs(domain.ProxyLogEntry{
			ProxyHost: "10.0.0.1", ProxyPort: 8080, ProxyIP: "10.0.0.1",
			Source: domain.SourceShopify, URL: "https://acme.test",
			Status: domain.ProxyBanned, DurationMS: 42, Error: "forbidden", CreatedAt: now,
		})},
		{"scraper_logs", insertScraperLogSQL, scraperLogArgs(domain.ScraperLogEntry{
			Source: domain.SourceGeneric, URL: "https://acme.test",
			DurationMS: 7, Status: domain.ScrapeSuccess, CreatedAt: now,
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen := map[string]bool{}
			for _, m := range placeholder.FindAllStringSubmatch(tc.sql, -1) {
				seen[m[1]] = true
				assert.Contains(t, tc.args, m[1])
			}
			assert.Len(t, tc.args, len(seen))
			assert.Equal(t, now, tc.args["created_at"])
		})
	}

	args := proxyLogArgs(domain.ProxyLogEntry{Source: domain.SourceShopify, Status: domain.ProxyBanned})
	assert.Equal(t, "shopify", args["source"])
	assert.Equal(t, "banned", args["status"])
}
