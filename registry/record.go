package registry

import (
	"bytes"
	"encoding/json"
)

// DefaultHealthPath is probed when a record has no "health" endpoint.
const DefaultHealthPath = "/health"

// ServiceRecord describes one registered prediction service. Field names
// follow the JSON wire contract. InputSchema, OutputSchema and Capabilities
// are opaque to the registry and forwarded verbatim.
type ServiceRecord struct {
	ServiceID     string            `json:"service_id"`
	ServiceName   string            `json:"service_name"`
	Version       string            `json:"version"`
	Description   string            `json:"description"`
	BaseURL       string            `json:"base_url"`
	Port          int               `json:"port"`
	Endpoints     map[string]string `json:"endpoints"`
	InputSchema   json.RawMessage   `json:"input_schema"`
	OutputSchema  json.RawMessage   `json:"output_schema"`
	Tags          []string          `json:"tags"`
	Capabilities  json.RawMessage   `json:"capabilities"`
	RegisteredAt  string            `json:"registered_at"`
	LastHeartbeat *string           `json:"last_heartbeat"`
}

// Clone returns a deep copy of r.
func (r ServiceRecord) Clone() ServiceRecord {
	out := r
	if r.Endpoints != nil {
		out.Endpoints = make(map[string]string, len(r.Endpoints))
		for k, v := range r.Endpoints {
			out.Endpoints[k] = v
		}
	}
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	out.InputSchema = cloneRaw(r.InputSchema)
	out.OutputSchema = cloneRaw(r.OutputSchema)
	out.Capabilities = cloneRaw(r.Capabilities)
	if r.LastHeartbeat != nil {
		hb := *r.LastHeartbeat
		out.LastHeartbeat = &hb
	}
	return out
}

// HealthPath returns the health endpoint path, DefaultHealthPath if unset.
func (r ServiceRecord) HealthPath() string {
	if p, ok := r.Endpoints["health"]; ok && p != "" {
		return p
	}
	return DefaultHealthPath
}

// HealthURL is BaseURL joined with HealthPath by plain concatenation.
func (r ServiceRecord) HealthURL() string {
	return r.BaseURL + r.HealthPath()
}

// HasAnyTag reports whether r carries at least one of tags, compared
// exactly (case-sensitive).
func (r ServiceRecord) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range r.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// normalize fills wire defaults for optional fields.
func (r *ServiceRecord) normalize() {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Endpoints == nil {
		r.Endpoints = map[string]string{}
	}
	if len(bytes.TrimSpace(r.Capabilities)) == 0 {
		r.Capabilities = nil
	}
}

func cloneRaw(m json.RawMessage) json.RawMessage {
	if m == nil {
		return nil
	}
	return append(json.RawMessage(nil), m...)
}
