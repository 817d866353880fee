package core

import (
	"context"
	"net/http"
	"time"
)

// healthResponse is the body of the health endpoint.
type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database,omitempty"`
}

// HandleHealth reports process liveness and, when a database pool is wired,
// its reachability. A failing database turns the response into a 503 so load
// balancers rotate the instance out.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Service: s.Config.Service}

	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.Error("health check database ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			JSON(w, r, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}

	JSON(w, r, http.StatusOK, resp)
}
