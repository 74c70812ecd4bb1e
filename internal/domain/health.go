package domain

// ============================================================
// Health, Metrics & Dashboard API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	State       string `json:"state,omitempty"` // circuit breaker state
	LastChecked string `json:"lastChecked"`
}

// PipelineMetrics is returned by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	TransitionsByStage map[Stage]int64 `json:"transitionsByStage"`
	Rejected           int64           `json:"rejected"`
	Failed             int64           `json:"failed"`
	NoopDrops          int64           `json:"noopDrops"`
	CacheHitRate       float64         `json:"cacheHitRate"`
}

// DashboardSummary is returned by GET /v1/dashboard. A section whose fetch
// failed is left at its zero value and its error is listed in Errors.
type DashboardSummary struct {
	Pipeline    PipelineSummary    `json:"pipeline"`
	Collections CollectionsSummary `json:"collections"`
	Errors      []string           `json:"errors,omitempty"`
}
