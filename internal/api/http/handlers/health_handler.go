package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/observability"
	"github.com/spec-kit/repair-desk/internal/persistence"
)

const readinessTimeout = 2 * time.Second

// HealthHandler serves liveness, readiness and the metrics snapshot.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
	metrics     *observability.Metrics
}

// NewHealthHandler wires the probes. A Postgres without a pool means the in-memory store.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis, metrics: metrics}
}

type dependencyCheck struct {
	name     string
	skipped  string
	optional bool
	ping     func(context.Context) error
}

type dependencyStatus struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func (h *HealthHandler) checks() []dependencyCheck {
	pg := dependencyCheck{name: "postgres", ping: h.postgres.Ping}
	if h.postgres.PoolHandle() == nil {
		pg.skipped = "memory"
	}
	rd := dependencyCheck{name: "redis", optional: true, ping: h.redis.Ping}
	if !h.redis.Enabled() {
		rd.skipped = "disabled"
	}
	return []dependencyCheck{pg, rd}
}

// Live reports that the process is up.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every configured dependency in parallel. Only a failing required
// dependency fails the probe; skipped ones report why they were skipped.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	checks := h.checks()
	results := make([]dependencyStatus, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		if check.skipped != "" {
			results[i] = dependencyStatus{Status: check.skipped}
			continue
		}
		wg.Add(1)
		go func(i int, check dependencyCheck) {
			defer wg.Done()
			start := time.Now()
			err := check.ping(ctx)
			res := dependencyStatus{Status: "ok", LatencyMS: float64(time.Since(start)) / float64(time.Millisecond)}
			if err != nil {
				res.Status = "down"
				res.Error = err.Error()
			}
			results[i] = res
		}(i, check)
	}
	wg.Wait()

	deps := make(map[string]dependencyStatus, len(checks))
	ready := true
	for i, check := range checks {
		deps[check.name] = results[i]
		if results[i].Status == "down" && !check.optional {
			ready = false
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":       "unavailable",
			"dependencies": deps,
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": deps})
}

// Metrics returns the in-memory request counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
