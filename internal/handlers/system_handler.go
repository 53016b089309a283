package handlers

import (
	"context"
	"net/http"
	"sort"

	"scicat/internal/models"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// StatsSource returns a named block of runtime statistics.
type StatsSource func(ctx context.Context) (interface{}, error)

type SystemHandler struct {
	site    models.Site
	checks  map[string]HealthCheck
	stats   map[string]StatsSource
	workers map[string]bool
}

func NewSystemHandler(site models.Site, checks map[string]HealthCheck, stats map[string]StatsSource, workers map[string]bool) *SystemHandler {
	return &SystemHandler{site: site, checks: checks, stats: stats, workers: workers}
}

func (h *SystemHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	services := gin.H{}
	for _, name := range sortedKeys(h.checks) {
		if err := h.checks[name](ctx); err != nil {
			services[name] = "unavailable: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		services[name] = "connected"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"site":      h.site.Code,
		"timestamp": nowUTC(),
		"services":  services,
	})
}

func (h *SystemHandler) Site(c *gin.Context) {
	ok(c, h.site)
}

func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	data := gin.H{"workers": h.workers}
	for _, name := range sortedKeys(h.stats) {
		value, err := h.stats[name](ctx)
		if err != nil {
			data[name] = gin.H{"error": err.Error()}
			continue
		}
		data[name] = value
	}
	ok(c, data)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
