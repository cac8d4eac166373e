package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"busreg.io/stager/internal/domain"
)

// ReportCache keeps resolved reports for paginated viewing. The registration
// API deletes a report once it has been fetched.
type ReportCache interface {
	Put(ctx context.Context, id string, report domain.Report) error
	// Get returns false when the report is unknown or expired.
	Get(ctx context.Context, id string) (domain.Report, bool, error)
}

type cachedReport struct {
	report  domain.Report
	expires time.Time
}

// MemoryReportCache is a bounded in-process ReportCache.
type MemoryReportCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]cachedReport
	order   []string
	now     func() time.Time
}

// NewMemoryReportCache keeps at most max reports for ttl each.
func NewMemoryReportCache(max int, ttl time.Duration) *MemoryReportCache {
	if max <= 0 {
		max = 256
	}
	return &MemoryReportCache{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]cachedReport),
		now:     time.Now,
	}
}

// Put implements ReportCache.
func (m *MemoryReportCache) Put(_ context.Context, id string, report domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		m.order = append(m.order, id)
	}
	m.entries[id] = cachedReport{report: report, expires: m.now().Add(m.ttl)}

	for len(m.order) > m.max {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	return nil
}

// Get implements ReportCache.
func (m *MemoryReportCache) Get(_ context.Context, id string) (domain.Report, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return domain.Report{}, false, nil
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		m.forget(id)
		return domain.Report{}, false, nil
	}
	return e.report, true, nil
}

// forget drops id from both the entries and the eviction order.
func (m *MemoryReportCache) forget(id string) {
	delete(m.entries, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// RedisReportCache shares reports across BFF replicas.
type RedisReportCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisReportCache creates a RedisReportCache.
func NewRedisReportCache(client redis.UniversalClient, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, prefix: "bsr-stager:report:", ttl: ttl}
}

// Put implements ReportCache.
func (r *RedisReportCache) Put(ctx context.Context, id string, report domain.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+id, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache report %s: %w", id, err)
	}
	return nil
}

// Get implements ReportCache.
func (r *RedisReportCache) Get(ctx context.Context, id string) (domain.Report, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Report{}, false, nil
	}
	if err != nil {
		return domain.Report{}, false, fmt.Errorf("read cached report %s: %w", id, err)
	}
	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.Report{}, false, fmt.Errorf("decode cached report %s: %w", id, err)
	}
	return report, true, nil
}
