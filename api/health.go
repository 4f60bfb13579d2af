package api

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	storeStatus := "ok"
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.logger.Errorw("store ping failed", "error", err)
		storeStatus = "error"
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  map[string]string{"store": storeStatus},
	}
	if storeStatus != "ok" {
		response.Status = "unhealthy"
		s.jsonResponse(w, http.StatusServiceUnavailable, response)
		return
	}
	s.jsonResponse(w, http.StatusOK, response)
}
