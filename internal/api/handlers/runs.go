package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/wizvec/internal/api"
	"github.com/cloo-solutions/wizvec/internal/domain"
)

// IngestService is the part of service.IngestService the handlers use.
type IngestService interface {
	Ingest(ctx context.Context, categories []string) (*domain.UpsertReport, error)
	LastReport() (*domain.UpsertReport, error)
}

const maxRunRequestBytes = 64 << 10

type RunHandler struct {
	svc IngestService
}

func NewRunHandler(svc IngestService) *RunHandler {
	return &RunHandler{svc: svc}
}

type StartRunRequest struct {
	Categories []string `json:"categories"`
}

// RunResponse is an UpsertReport with its derived status and summary.
type RunResponse struct {
	*domain.UpsertReport
	Status  domain.RunStatus `json:"status"`
	Summary string           `json:"summary"`
}

func newRunResponse(r *domain.UpsertReport) RunResponse {
	return RunResponse{UpsertReport: r, Status: r.Status(), Summary: r.Summary()}
}

// Start runs an ingestion synchronously and returns its report. The body is
// optional.
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := api.DecodeJSON(w, r, &req, maxRunRequestBytes); err != nil {
		api.HandleError(w, err)
		return
	}

	categories := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}

	report, err := h.svc.Ingest(r.Context(), categories)
	if err != nil && report == nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, newRunResponse(report))
}

// Latest returns the report of the most recent run.
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.LastReport()
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, newRunResponse(report))
}
