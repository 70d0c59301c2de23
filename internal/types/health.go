package types

import "time"

// LocalHealth represents a snapshot of the local machine
type LocalHealth struct {
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	DiskPercent   float64  `json:"disk_percent"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Warnings      []string `json:"warnings"`
}

// Healthy reports whether the local snapshot carries no warnings
func (l *LocalHealth) Healthy() bool {
	return len(l.Warnings) == 0
}

// AzureStatus represents the outcome of the Azure check
type AzureStatus string

const (
	AzureStatusOK            AzureStatus = "ok"
	AzureStatusWarnings      AzureStatus = "warnings"
	AzureStatusNotConfigured AzureStatus = "not_configured"
	AzureStatusAuthFailed    AzureStatus = "auth_failed"
)

// AzureResource represents a single evaluated Azure resource
type AzureResource struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Healthy bool   `json:"healthy"`
}

// AzureHealth represents the Azure portion of a health report
type AzureHealth struct {
	Configured      bool            `json:"configured"`
	Status          AzureStatus     `json:"status"`
	Message         string          `json:"message,omitempty"`
	VMs             []AzureResource `json:"vms"`
	AppServices     []AzureResource `json:"app_services"`
	StorageAccounts []AzureResource `json:"storage_accounts"`
	Warnings        []string        `json:"warnings"`
}

// Resources returns all evaluated resources in declaration order
func (a *AzureHealth) Resources() []AzureResource {
	out := make([]AzureResource, 0, len(a.VMs)+len(a.AppServices)+len(a.StorageAccounts))
	out = append(out, a.VMs...)
	out = append(out, a.AppServices...)
	out = append(out, a.StorageAccounts...)
	return out
}

// EndpointStatus represents the probe outcome of a custom endpoint
type EndpointStatus string

const (
	EndpointUp   EndpointStatus = "UP"
	EndpointDown EndpointStatus = "DOWN"
)

// EndpointResult represents a single endpoint probe result
type EndpointResult struct {
	Name       string         `json:"name"`
	URL        string         `json:"url"`
	Status     EndpointStatus `json:"status"`
	HTTPStatus *int           `json:"http_status,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
	Error      string         `json:"error,omitempty"`
}

// CustomHealth represents the custom endpoint portion of a health report
type CustomHealth struct {
	Configured bool             `json:"configured"`
	Results    []EndpointResult `json:"results"`
	Warnings   []string         `json:"warnings"`
}

// HealthSummary represents the per-report check counters
type HealthSummary struct {
	Total    int `json:"total"`
	Healthy  int `json:"healthy"`
	Warnings int `json:"warnings"`
}

// HealthReport represents the unified report across all sources
type HealthReport struct {
	Timestamp time.Time     `json:"timestamp"`
	Summary   HealthSummary `json:"summary"`
	Warnings  []string      `json:"warnings"`
	Local     *LocalHealth  `json:"local"`
	Azure     *AzureHealth  `json:"azure"`
	Custom    *CustomHealth `json:"custom"`
}
