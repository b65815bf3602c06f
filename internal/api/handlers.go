package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/scraper-service/internal/domain"
	"github.com/user/scraper-service/internal/retry"
	"github.com/user/scraper-service/internal/source"
)

type scrapeRequest struct {
	ID     string        `json:"id"`
	URL    string        `json:"url"`
	Source domain.Source `json:"source"`
}

type scrapeResponse struct {
	Lead     domain.Lead           `json:"lead"`
	State    retry.State           `json:"state"`
	Attempts []domain.AttemptState `json:"attempts"`
	Message  string                `json:"message,omitempty"`
}

type sourceInfo struct {
	Source   domain.Source   `json:"source"`
	Platform string          `json:"platform"`
	Strategy source.Strategy `json:"strategy"`
}

// handleScrape runs a scrape for one lead and returns the updated lead. A
// failed scrape is still a 200: the failure lives in the lead's status.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" || req.Source == "" {
		s.respondWithError(w, http.StatusBadRequest, "url and source are required")
		return
	}

	lead := domain.Lead{ID: req.ID, URL: req.URL, Source: req.Source, Status: domain.LeadPending}
	outcome := s.runner.Run(r.Context(), lead.Request())
	lead.Apply(outcome.Result)

	s.respondWithJSON(w, http.StatusOK, scrapeResponse{
		Lead:     lead,
		State:    outcome.State,
		Attempts: outcome.Attempts,
		Message:  outcome.Message,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	all := source.All()
	out := make([]sourceInfo, 0, len(all))
	for _, d := range all {
		out = append(out, sourceInfo{Source: d.Source, Platform: d.Platform, Strategy: d.Strategy})
	}
	s.respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleProxies(w http.ResponseWriter, r *http.Request) {
	report, err := s.proxies.Report(r.Context())
	if err != nil {
		s.logger.Error("failed to build proxy report", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Failed to load proxies")
		return
	}
	s.respondWithJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string, len(s.checks))
	healthy := true
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			healthy = false
			s.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !healthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
