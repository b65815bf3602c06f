package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/scraper-service/internal/domain"
)

// PostgresStore reads the proxy directory and appends telemetry rows.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

const listActiveProxiesSQL = `
SELECT id, host, port, COALESCE(username, ''), COALESCE(password, ''), status,
       COALESCE(avg_response_time_ms, 0), COALESCE(error_count_24h, 0), updated_at
FROM proxies
WHERE status = 'active'
ORDER BY updated_at DESC`

// ListActive returns the active proxies, most recently updated first.
func (s *PostgresStore) ListActive(ctx context.Context) ([]domain.ProxyEndpoint, error) {
	rows, err := s.db.Query(ctx, listActiveProxiesSQL)
	if err != nil {
		return nil, fmt.Errorf("query proxies: %w", err)
	}

	proxies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ProxyEndpoint, error) {
		var p domain.ProxyEndpoint
		err := row.Scan(&p.ID, &p.Host, &p.Port, &p.Username, &p.Password, &p.Status,
			&p.AvgResponseTimeMS, &p.ErrorCount24h, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan proxies: %w", err)
	}
	return proxies, nil
}

const insertProxyLogSQL = `
INSERT INTO proxy_logs (proxy_host, proxy_port, proxy_ip, source, url, status, duration_ms, error, created_at)
VALUES (@proxy_host, @proxy_port, @proxy_ip, @source, @url, @status, @duration_ms, NULLIF(@error, ''), @created_at)`

const insertScraperLogSQL = `
INSERT INTO scraper_logs (source, url, duration_ms, status, error, created_at)
VALUES (@source, @url, @duration_ms, @status, NULLIF(@error, ''), @created_at)`

func proxyLogArgs(e domain.ProxyLogEntry) pgx.NamedArgs {
	return pgx.NamedArgs{
		"proxy_host":  e.ProxyHost,
		"proxy_port":  e.ProxyPort,
		"proxy_ip":    e.ProxyIP,
		"source":      string(e.Source),
		"url":         e.URL,
		"status":      string(e.Status),
		"duration_ms": e.DurationMS,
		"error":       e.Error,
		"created_at":  e.CreatedAt,
	}
}

func scraperLogArgs(e domain.ScraperLogEntry) pgx.NamedArgs {
	return pgx.NamedArgs{
		"source":      string(e.Source),
		"url":         e.URL,
		"duration_ms": e.DurationMS,
		"status":      string(e.Status),
		"error":       e.Error,
		"created_at":  e.CreatedAt,
	}
}

// InsertProxyLog appends one row to proxy_logs.
func (s *PostgresStore) InsertProxyLog(ctx context.Context, e domain.ProxyLogEntry) error {
	if _, err := s.db.Exec(ctx, insertProxyLogSQL, proxyLogArgs(e)); err != nil {
		return fmt.Errorf("insert proxy log: %w", err)
	}
	return nil
}

// InsertScraperLog appends one row to scraper_logs.
func (s *PostgresStore) InsertScraperLog(ctx context.Context, e domain.ScraperLogEntry) error {
	if _, err := s.db.Exec(ctx, insertScraperLogSQL, scraperLogArgs(e)); err != nil {
		return fmt.Errorf("insert scraper log: %w", err)
	}
	return nil
}
