// Package health serves the liveness endpoint.
package health

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
)

// Response is the payload for the health endpoint.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// Checker reports whether a dependency is ready to serve.
type Checker interface {
	IsInitialized() bool
}

// Handler returns a health handler that reports each named checker. Any
// checker that is not ready turns the response into a 503 "degraded".
func Handler(checks map[string]Checker) http.HandlerFunc {
	names := slices.Sorted(maps.Keys(checks))
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := Response{Status: "healthy"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Services = make(map[string]string, len(names))
		}
		for _, name := range names {
			if checks[name].IsInitialized() {
				resp.Services[name] = "ok"
				continue
			}
			resp.Services[name] = "not_initialized"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
