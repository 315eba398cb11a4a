package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"go.uber.org/zap"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	CaptureAlive   bool   `json:"capture_alive"`
	ProcessorAlive bool   `json:"processor_alive"`
	DroppedFrames  uint64 `json:"dropped_frames"`
}

func (s *Server) healthStatus() HealthResponse {
	resp := HealthResponse{Status: "ok"}
	if s.deps.Capture != nil {
		resp.CaptureAlive = s.deps.Capture.IsAlive()
		resp.DroppedFrames = s.deps.Capture.Dropped()
	}
	if s.deps.Processor != nil {
		resp.ProcessorAlive = s.deps.Processor.IsAlive()
	}
	if !resp.ProcessorAlive {
		resp.Status = "degraded"
	}
	return resp
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.healthStatus())
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.deps.Metrics.Snapshot())
}

func (s *Server) alertsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.deps.Alerts.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		s.logger.Error("Failed to marshal response", zap.Error(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// corsMiddleware allows browser reads from the configured origins. "*"
// allows any origin.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(allowed, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || slices.Contains(allowed, origin)) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}
