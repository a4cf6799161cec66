package observability

import (
	"sort"
	"sync"
	"time"
)

// Metrics aggregates request counts and latencies per route pattern in memory.
type Metrics struct {
	mu      sync.Mutex
	started time.Time
	routes  map[routeKey]*routeStats
	errors  map[string]int64
}

type routeKey struct {
	method string
	route  string
}

type routeStats struct {
	count   int64
	classes [6]int64 // index is status / 100
	total   time.Duration
	max     time.Duration
}

// RouteSnapshot summarizes one route.
type RouteSnapshot struct {
	Method       string           `json:"method"`
	Route        string           `json:"route"`
	Count        int64            `json:"count"`
	StatusClass  map[string]int64 `json:"status_class"`
	AvgLatencyMS float64          `json:"avg_latency_ms"`
	MaxLatencyMS float64          `json:"max_latency_ms"`
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Requests      []RouteSnapshot  `json:"requests"`
	ErrorCodes    map[string]int64 `json:"error_codes"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started: time.Now(),
		routes:  make(map[routeKey]*routeStats),
		errors:  make(map[string]int64),
	}
}

// RecordRequest counts a finished request. Safe on a nil receiver.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := routeKey{method: method, route: route}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.routes[key]
	if !ok {
		stats = &routeStats{}
		m.routes[key] = stats
	}
	stats.count++
	if class := status / 100; class > 0 && class < len(stats.classes) {
		stats.classes[class]++
	}
	stats.total += duration
	if duration > stats.max {
		stats.max = duration
	}
}

// RecordError counts a rendered error by its code. Safe on a nil receiver.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[code]++
}

// Snapshot copies the counters, routes sorted by method then route.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Requests: []RouteSnapshot{}, ErrorCodes: map[string]int64{}}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap.UptimeSeconds = int64(time.Since(m.started).Seconds())
	for key, stats := range m.routes {
		classes := map[string]int64{}
		for class, n := range stats.classes {
			if n > 0 {
				classes[string(rune('0'+class))+"xx"] = n
			}
		}
		snap.Requests = append(snap.Requests, RouteSnapshot{
			Method:       key.method,
			Route:        key.route,
			Count:        stats.count,
			StatusClass:  classes,
			AvgLatencyMS: milliseconds(stats.total / time.Duration(stats.count)),
			MaxLatencyMS: milliseconds(stats.max),
		})
	}
	sort.Slice(snap.Requests, func(i, j int) bool {
		a, b := snap.Requests[i], snap.Requests[j]
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		return a.Route < b.Route
	})
	for code, n := range m.errors {
		snap.ErrorCodes[code] = n
	}
	return snap
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
