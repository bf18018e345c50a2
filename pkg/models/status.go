package models

// HealthStatus is the response body for the /health and /ready endpoints.
type HealthStatus struct {
	Status   string `json:"status"`
	PodCount int    `json:"pod_count"`
}

// PodListResponse is the response body for the /pods endpoint.
type PodListResponse struct {
	Pods  map[string]*PodRecord `json:"pods"`
	Count int                   `json:"count"`
}

// ErrorResponse is the error body returned by the query endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
