package proxy

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
)

// Directory lists the proxies known to the system.
type Directory interface {
	// ListActive returns proxies with status active, most recently updated first.
	ListActive(ctx context.Context) ([]domain.ProxyEndpoint, error)
}

// DefaultUserAgents is the pool outbound User-Agent headers are drawn from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Manager handles the rotation of proxies and user agents.
type Manager struct {
	directory  Directory
	userAgents []string
	logger     *zap.Logger

	mu      sync.Mutex
	counter int
	rnd     *rand.Rand
}

// NewManager creates a Manager whose rotation starts at the first proxy.
func NewManager(directory Directory, logger *zap.Logger) *Manager {
	return &Manager{
		directory:  directory,
		userAgents: DefaultUserAgents,
		logger:     logger.Named("proxy"),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextProxy returns the next active proxy in round-robin order, or nil when
// none is available. Directory errors are treated as an empty pool so callers
// fall back to a direct connection.
func (m *Manager) NextProxy(ctx context.Context) *domain.ProxyEndpoint {
	proxies, err := m.directory.ListActive(ctx)
	if err != nil {
		m.logger.Warn("listing active proxies failed, using direct connection", zap.Error(err))
		return nil
	}

	active := make([]domain.ProxyEndpoint, 0, len(proxies))
	for _, p := range proxies {
		if p.Status == domain.ProxyActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})

	m.mu.Lock()
	idx := m.counter % len(active)
	m.counter = (idx + 1) % len(active)
	m.mu.Unlock()

	p := active[idx]
	return &p
}

// GetUserAgent returns a random user agent string.
func (m *Manager) GetUserAgent() string {
	if len(m.userAgents) == 0 {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userAgents[m.rnd.Intn(len(m.userAgents))]
}
