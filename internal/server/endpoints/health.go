package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/doclingsrv"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string          `json:"server"`
	Backends  BackendsStatus  `json:"backends"`
	Docling   DoclingStatus   `json:"docling"`
	Scheduler SchedulerStatus `json:"scheduler"`
}

// BackendsStatus shows registered OCR backends.
type BackendsStatus struct {
	OCR []string `json:"ocr"`
}

// DoclingStatus shows docling-serve container and health status.
type DoclingStatus struct {
	Container string `json:"container"`
	URL       string `json:"url,omitempty"`
}

// SchedulerStatus summarizes the worker pools.
type SchedulerStatus struct {
	ActiveJobs int          `json:"active_jobs"`
	Pools      []PoolStatus `json:"pools"`
}

// PoolStatus is one worker pool's summary.
type PoolStatus struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	// DoclingManager is set by the server; nil when docling is unmanaged.
	DoclingManager *doclingsrv.Manager
}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	if registry := svcctx.RegistryFrom(r.Context()); registry != nil {
		resp.Backends.OCR = registry.ListOCR()
	}

	if e.DoclingManager != nil {
		status, err := e.DoclingManager.Status(r.Context())
		if err != nil {
			resp.Docling.Container = "error"
		} else {
			resp.Docling.Container = string(status)
		}
		resp.Docling.URL = e.DoclingManager.URL()
	} else {
		resp.Docling.Container = "unmanaged"
	}

	if scheduler := svcctx.SchedulerFrom(r.Context()); scheduler != nil {
		resp.Scheduler.ActiveJobs = scheduler.ActiveJobs()
		for _, ps := range scheduler.PoolStatuses() {
			resp.Scheduler.Pools = append(resp.Scheduler.Pools, PoolStatus{
				Name:       ps.Name,
				Type:       string(ps.Type),
				Workers:    ps.Workers,
				InFlight:   ps.InFlight,
				QueueDepth: ps.QueueDepth,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Docling:\n")
			fmt.Printf("  Container: %s\n", resp.Docling.Container)
			if resp.Docling.URL != "" {
				fmt.Printf("  URL:       %s\n", resp.Docling.URL)
			}
			fmt.Printf("Backends:\n")
			fmt.Printf("  OCR: %v\n", resp.Backends.OCR)
			fmt.Printf("Scheduler:\n")
			fmt.Printf("  Active jobs: %d\n", resp.Scheduler.ActiveJobs)
			for _, p := range resp.Scheduler.Pools {
				fmt.Printf("  Pool %s (%s): workers=%d in_flight=%d queued=%d\n",
					p.Name, p.Type, p.Workers, p.InFlight, p.QueueDepth)
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
