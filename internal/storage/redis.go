package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/proxy"
)

const (
	activeProxiesKey = "proxies:active"
	proxyErrorWindow = 24 * time.Hour
)

// RedisStore handles the proxy directory cache and rolling proxy error counters.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func proxyErrorsKey(host string, port int) string {
	return fmt.Sprintf("proxy_errors:%s:%d", host, port)
}

// IncrementProxyErrors bumps the failure counter for a proxy. The counter
// expires a day after the first failure in the window.
func (s *RedisStore) IncrementProxyErrors(ctx context.Context, host string, port int) (int64, error) {
	key := proxyErrorsKey(host, port)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, proxyErrorWindow).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// ProxyErrorCount returns the failures recorded for a proxy in the current window.
func (s *RedisStore) ProxyErrorCount(ctx context.Context, host string, port int) (int64, error) {
	count, err := s.client.Get(ctx, proxyErrorsKey(host, port)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

// cachedProxy is the cache form of a proxy. Credentials never leave the
// process; HasAuth records that the endpoint needs them.
type cachedProxy struct {
	ID                int64              `json:"id"`
	Host              string             `json:"host"`
	Port              int                `json:"port"`
	HasAuth           bool               `json:"has_auth"`
	Status            domain.ProxyStatus `json:"status"`
	AvgResponseTimeMS int                `json:"avg_response_time_ms"`
	ErrorCount24h     int                `json:"error_count_24h"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type credentials struct {
	username string
	password string
}

// CachedDirectory serves the active proxy list from Redis and refreshes it
// from the wrapped directory when the entry is missing or expired. Cache
// faults fall through to the wrapped directory.
//
// Only credential-free entries are written to Redis. Credentials are kept in
// process, keyed by proxy address, and refreshed on every directory read.
type CachedDirectory struct {
	next   proxy.Directory
	store  *RedisStore
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.RWMutex
	creds map[string]credentials
}

func NewCachedDirectory(next proxy.Directory, store *RedisStore, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.Named("proxy_cache"),
		creds:  make(map[string]credentials),
	}
}

func (c *CachedDirectory) ListActive(ctx context.Context) ([]domain.ProxyEndpoint, error) {
	if proxies, ok := c.readCache(ctx); ok {
		return proxies, nil
	}

	proxies, err := c.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	c.remember(proxies)

	entries := make([]cachedProxy, 0, len(proxies))
	for _, p := range proxies {
		entries = append(entries, cachedProxy{
			ID:                p.ID,
			Host:              p.Host,
			Port:              p.Port,
			HasAuth:           p.HasAuth(),
			Status:            p.Status,
			AvgResponseTimeMS: p.AvgResponseTimeMS,
			ErrorCount24h:     p.ErrorCount24h,
			UpdatedAt:         p.UpdatedAt,
		})
	}
	if raw, err := json.Marshal(entries); err == nil {
		if err := c.store.client.Set(ctx, activeProxiesKey, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("proxy cache write failed", zap.Error(err))
		}
	}
	return proxies, nil
}

// readCache returns the cached list joined with the in-process credentials.
// A miss, a fault, or an entry whose credentials this process never saw all
// report false.
func (c *CachedDirectory) readCache(ctx context.Context) ([]domain.ProxyEndpoint, bool) {
	raw, err := c.store.client.Get(ctx, activeProxiesKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("proxy cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var entries []cachedProxy
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.logger.Warn("discarding undecodable proxy cache entry")
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	proxies := make([]domain.ProxyEndpoint, 0, len(entries))
	for _, e := range entries {
		p := domain.ProxyEndpoint{
			ID:                e.ID,
			Host:              e.Host,
			Port:              e.Port,
			Status:            e.Status,
			AvgResponseTimeMS: e.AvgResponseTimeMS,
			ErrorCount24h:     e.ErrorCount24h,
			UpdatedAt:         e.UpdatedAt,
		}
		if e.HasAuth {
			cr, ok := c.creds[p.Addr()]
			if !ok {
				return nil, false
			}
			p.Username, p.Password = cr.username, cr.password
		}
		proxies = append(proxies, p)
	}
	return proxies, true
}

func (c *CachedDirectory) remember(proxies []domain.ProxyEndpoint) {
	creds := make(map[string]credentials, len(proxies))
	for _, p := range proxies {
		if p.HasAuth() {
			creds[p.Addr()] = credentials{username: p.Username, password: p.Password}
		}
	}
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

// Report lists the active proxies with their failure count for the current
// window. It carries no credentials.
func (c *CachedDirectory) Report(ctx context.Context) ([]domain.ProxyHealth, error) {
	proxies, err := c.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ProxyHealth, 0, len(proxies))
	for _, p := range proxies {
		count, err := c.store.ProxyErrorCount(ctx, p.Host, p.Port)
		if err != nil {
			return nil, fmt.Errorf("read error count for %s: %w", p.Addr(), err)
		}
		out = append(out, domain.ProxyHealth{
			Host:              p.Host,
			Port:              p.Port,
			Status:            p.Status,
			AvgResponseTimeMS: p.AvgResponseTimeMS,
			RecentErrors:      count,
			UpdatedAt:         p.UpdatedAt,
		})
	}
	return out, nil
}
