package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/health"
	"github.com/zainbaq/medical-ml/registry"
)

// RegisterResponse acknowledges a registration
type RegisterResponse struct {
	Status    string `json:"status"`
	ServiceID string `json:"service_id"`
	Message   string `json:"message"`
}

// HeartbeatResponse acknowledges a heartbeat
type HeartbeatResponse struct {
	Status    string `json:"status"`
	ServiceID string `json:"service_id"`
	Timestamp string `json:"timestamp"`
}

// HealthResponse is the registry's own health report
type HealthResponse struct {
	Status             string            `json:"status"`
	Service            string            `json:"service"`
	RegisteredServices int               `json:"registered_services"`
	HealthyServices    int               `json:"healthy_services"`
	Version            string            `json:"version"`
	Dependencies       map[string]string `json:"dependencies,omitempty"`
}

// InfoResponse describes the API at the root path
type InfoResponse struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	Description      string `json:"description"`
	ServicesEndpoint string `json:"services_endpoint"`
	HealthEndpoint   string `json:"health_endpoint"`
	WatchEndpoint    string `json:"watch_endpoint,omitempty"`
	MetricsEndpoint  string `json:"metrics_endpoint,omitempty"`
}

const serviceDescription = "Central registry for medical ML prediction services"

func (s *Server) routes() *http.ServeMux {
	prefix := strings.TrimRight(s.cfg.Server.APIPrefix, "/")
	services := prefix + "/services"

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET "+prefix+"/health/all", s.handleHealthAll)

	mux.HandleFunc("POST "+services+"/register", s.handleRegister)
	mux.HandleFunc("GET "+services, s.handleList)
	mux.HandleFunc("GET "+services+"/search/by-tags", s.handleSearchByTags)
	mux.HandleFunc("GET "+services+"/{service_id}", s.handleGet)
	mux.HandleFunc("DELETE "+services+"/{service_id}", s.handleUnregister)
	mux.HandleFunc("POST "+services+"/{service_id}/heartbeat", s.handleHeartbeat)

	if s.broadcaster != nil {
		mux.HandleFunc("GET "+services+"/watch", s.handleWatch)
	}
	if s.metricsRegistry != nil && s.cfg.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Metrics.Path, s.metricsRegistry.Handler())
	}
	return mux
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	prefix := strings.TrimRight(s.cfg.Server.APIPrefix, "/")
	info := InfoResponse{
		Name:             s.cfg.Service.Name,
		Version:          s.cfg.Service.Version,
		Description:      serviceDescription,
		ServicesEndpoint: prefix + "/services",
		HealthEndpoint:   "/health",
	}
	if s.broadcaster != nil {
		info.WatchEndpoint = prefix + "/services/watch"
	}
	if s.metricsRegistry != nil && s.cfg.Metrics.Enabled {
		info.MetricsEndpoint = s.cfg.Metrics.Path
	}
	writeJSON(w, http.StatusOK, info)
}

// handleHealth reports liveness of the registry itself. Dependencies can
// degrade the status; they never fail the request.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	timeout := s.cfg.Registry.HeartbeatTimeout.Duration()
	resp := HealthResponse{
		Status:             health.StatusHealthy,
		Service:            s.cfg.Service.Name,
		RegisteredServices: s.store.Count(),
		HealthyServices:    len(s.store.Healthy(timeout)),
		Version:            s.cfg.Service.Version,
	}

	if len(s.dependencies) > 0 {
		subs := make([]health.Status, 0, len(s.dependencies))
		resp.Dependencies = make(map[string]string, len(s.dependencies))
		for _, dep := range s.dependencies {
			st := dep.Check()
			// a dependency outage leaves the registry usable
			if st.IsUnhealthy() {
				st = health.NewDegraded(dep.Name, st.Message)
			}
			subs = append(subs, st)
			resp.Dependencies[dep.Name] = st.Status
		}
		resp.Status = health.Aggregate(s.cfg.Service.Name, subs).Status
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthAll(w http.ResponseWriter, r *http.Request) {
	report := s.checker.Check(r.Context(), s.store.List())
	if report == nil {
		report = map[string]registry.ServiceHealth{}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		s.writeError(w, r, errors.WrapInvalid(err, "Server", "handleRegister", "read body"))
		return
	}

	rec, err := decodeRecord(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stored := s.store.Add(rec)
	writeJSON(w, http.StatusCreated, RegisterResponse{
		Status:    "registered",
		ServiceID: stored.ServiceID,
		Message:   fmt.Sprintf("Service '%s' registered successfully", stored.ServiceName),
	})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("service_id")
	if !s.store.Remove(id) {
		s.writeError(w, r, errors.NotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, RegisterResponse{
		Status:    "unregistered",
		ServiceID: id,
		Message:   fmt.Sprintf("Service '%s' unregistered successfully", id),
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("service_id")
	rec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, r, errors.NotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("service_id")
	ts, ok := s.store.Heartbeat(id)
	if !ok {
		s.writeError(w, r, errors.NotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, HeartbeatResponse{
		Status:    "acknowledged",
		ServiceID: id,
		Timestamp: ts,
	})
}

// handleSearchByTags splits ?tags=a,b on commas and trims each tag. A
// missing or empty parameter lists everything.
func (s *Server) handleSearchByTags(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tags")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.store.List())
		return
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tags = append(tags, strings.TrimSpace(p))
	}
	writeJSON(w, http.StatusOK, s.store.SearchByTags(tags))
}
