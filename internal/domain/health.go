package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// GatewayMetrics is returned by GET /v1/metrics/gateway.
type GatewayMetrics struct {
	TotalCalls          int64   `json:"totalCalls"`
	Fallbacks           int64   `json:"fallbacks"`
	FallbackRate        float64 `json:"fallbackRate"`
	Timeouts            int64   `json:"timeouts"`
	AvgTokensPerCall    float64 `json:"avgTokensPerCall"`
	EstimatedCostUsd    float64 `json:"estimatedCostUsd"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	ParseErrors         int64   `json:"parseErrors"`
	SkippedRows         int64   `json:"skippedRows"`
	IncidentsCorrelated int64   `json:"incidentsCorrelated"`
	Period              string  `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
