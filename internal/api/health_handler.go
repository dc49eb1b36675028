package api

import (
	"context"
	"net/http"
	"time"
)

// Health — состояние зависимостей gateway.
// GET /healthz
//
// Проверки независимы: недоступный брокер не валит весь healthcheck
// (gateway продолжает принимать задачи через polling fallback),
// а вот без Task Store сервис бесполезен — 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	if h.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.dbPing(ctx); err != nil {
			checks["database"] = "down: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if h.queueConnected != nil {
		if h.queueConnected() {
			checks["queue"] = "ok"
		} else {
			checks["queue"] = "down"
		}
	} else {
		checks["queue"] = "disabled"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else if checks["queue"] == "down" {
		status = "degraded"
	}

	JSON(w, code, HealthResponse{Status: status, Checks: checks})
}
