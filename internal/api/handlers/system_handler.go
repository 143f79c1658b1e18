package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"autotrader/internal/models"
)

// healthTimeout - таймаут одной проверки зависимости
const healthTimeout = 2 * time.Second

// HealthCheck проверяет доступность зависимости (БД, Redis)
type HealthCheck func(ctx context.Context) error

// EngineStatusProvider - источник состояния сканера (bot.Engine)
type EngineStatusProvider interface {
	Status() models.EngineStatus
}

// SystemHandler - служебные endpoints
//
// Endpoints:
// - GET /health - проверка БД и Redis
// - GET /api/v1/engine/status - состояние сканера
type SystemHandler struct {
	checks map[string]HealthCheck
	engine EngineStatusProvider
}

// NewSystemHandler создает SystemHandler. checks может быть пустым.
func NewSystemHandler(engine EngineStatusProvider, checks map[string]HealthCheck) *SystemHandler {
	return &SystemHandler{checks: checks, engine: engine}
}

// HealthResponse - результат проверок
type HealthResponse struct {
	Status string            `json:"status"` // ok, degraded
	Checks map[string]string `json:"checks,omitempty"`
}

// Health проверяет зависимости
//
// GET /health
//
// HTTP коды:
// - 200 OK: все проверки прошли
// - 503 Service Unavailable: хотя бы одна зависимость недоступна
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := h.checks[name](ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, resp)
}

// EngineStatus возвращает снимок сканера
//
// GET /api/v1/engine/status
func (h *SystemHandler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Engine not running", "")
		return
	}
	respondWithJSON(w, http.StatusOK, h.engine.Status())
}
