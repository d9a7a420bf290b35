package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

// Pinger reports whether a backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of the token cache and the etcd registration
//	@Description	Only a failed registration makes the service not ready; a cache failure is reported but tolerated
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	tokensdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	tokensdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, cache Pinger, registry func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &tokensdk.HealthChecks{
			Cache:    "ok",
			Registry: "disabled",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		// The cache is advisory; the engine signs and verifies without it.
		if err := cache.Ping(ctx); err != nil {
			checks.Cache = "error: " + err.Error()
		}

		if registry != nil {
			checks.Registry = "ok"
			if err := registry(); err != nil {
				checks.Registry = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, statusCode, tokensdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
