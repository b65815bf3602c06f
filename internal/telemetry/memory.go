package telemetry

import (
	"context"
	"sync"

	"github.com/user/scraper-service/internal/domain"
)

// MemorySink keeps telemetry rows in memory. It backs the service when no
// database is configured and is used by tests across packages.
type MemorySink struct {
	mu          sync.Mutex
	proxyLogs   []domain.ProxyLogEntry
	scraperLogs []domain.ScraperLogEntry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) InsertProxyLog(_ context.Context, entry domain.ProxyLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxyLogs = append(s.proxyLogs, entry)
	return nil
}

func (s *MemorySink) InsertScraperLog(_ context.Context, entry domain.ScraperLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scraperLogs = append(s.scraperLogs, entry)
	return nil
}

// ProxyLogs returns a copy of the recorded proxy rows.
func (s *MemorySink) ProxyLogs() []domain.ProxyLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProxyLogEntry(nil), s.proxyLogs...)
}

// ScraperLogs returns a copy of the recorded scrape rows.
func (s *MemorySink) ScraperLogs() []domain.ScraperLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ScraperLogEntry(nil), s.scraperLogs...)
}
