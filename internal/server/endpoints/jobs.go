package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/jobs"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// JobResponse is the JSON shape for one job record.
type JobResponse struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Live        map[string]string `json:"live,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func jobResponse(rec *jobs.Record) JobResponse {
	return JobResponse{
		ID:          rec.ID,
		Type:        rec.JobType,
		Status:      string(rec.Status),
		Error:       rec.Error,
		Metadata:    rec.Metadata,
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
	}
}

// ListJobsResponse is the response for listing jobs.
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}

// ListJobsEndpoint handles GET /v1/jobs.
type ListJobsEndpoint struct{}

var _ api.Endpoint = (*ListJobsEndpoint)(nil)

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List jobs
//	@Description	List job records, newest first
//	@Tags			jobs
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Success		200		{object}	ListJobsResponse
//	@Router			/v1/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	manager := svcctx.JobManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	filter := jobs.ListFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = jobs.Status(s)
	}

	list, err := manager.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(list))}
	for _, rec := range list {
		resp.Jobs = append(resp.Jobs, jobResponse(rec))
	}
	resp.Total = len(resp.Jobs)
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListJobsResponse
			if err := client.Get(cmd.Context(), "/v1/jobs", &resp); err != nil {
				return err
			}
			for _, j := range resp.Jobs {
				fmt.Printf("%-36s  %-16s  %-10s\n", j.ID, j.Type, j.Status)
			}
			return nil
		},
	}
}

// GetJobEndpoint handles GET /v1/jobs/{id}. Active jobs include live progress
// from the scheduler.
type GetJobEndpoint struct{}

var _ api.Endpoint = (*GetJobEndpoint)(nil)

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get job
//	@Description	Get one job record with live status when the job is active
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	JobResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/jobs/{id} [get]
func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	manager := svcctx.JobManagerFrom(r.Context())
	if manager == nil {
		writeError(w, http.StatusServiceUnavailable, "job manager not initialized")
		return
	}

	rec, err := manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	resp := jobResponse(rec)
	if scheduler := svcctx.SchedulerFrom(r.Context()); scheduler != nil {
		if live, err := scheduler.JobStatus(r.Context(), rec.ID); err == nil {
			resp.Live = live
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Get one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobResponse
			if err := client.Get(cmd.Context(), "/v1/jobs/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Printf("ID:     %s\n", resp.ID)
			fmt.Printf("Type:   %s\n", resp.Type)
			fmt.Printf("Status: %s\n", resp.Status)
			if resp.Error != "" {
				fmt.Printf("Error:  %s\n", resp.Error)
			}
			for k, v := range resp.Live {
				fmt.Printf("  %s: %s\n", k, v)
			}
			return nil
		},
	}
}
