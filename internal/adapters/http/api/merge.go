package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	service "github.com/okian/ridermerge/internal/app"
)

// runRequest is the optional body of POST /merge/run.
type runRequest struct {
	DryRun      bool              `json:"dry_run"`
	NameAliases map[string]string `json:"name_aliases"`
	KeepApart   [][]int64         `json:"keep_apart"`
}

func (r runRequest) validate() error {
	for _, set := range r.KeepApart {
		if len(set) < 2 {
			return errors.New("keep_apart sets need at least two rider ids")
		}
	}
	return nil
}

// MergeHandler serves batch runs and their reports.
type MergeHandler struct {
	deps Dependencies
}

// NewMergeHandler creates a new merge handler.
func NewMergeHandler(deps Dependencies) *MergeHandler {
	return &MergeHandler{deps: deps}
}

// HandleRun handles POST /merge/run. The batch runs synchronously; the
// dry_run query parameter overrides the body.
func (h *MergeHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if v := r.URL.Query().Get("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: dry_run: %w", ErrBadRequest, err))
			return
		}
		req.DryRun = dry
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	report, err := h.deps.RunBatch(r.Context(), service.BatchOptions{
		DryRun:    req.DryRun,
		Overrides: service.Overrides{NameAliases: req.NameAliases, KeepApart: req.KeepApart},
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleReport handles GET /merge/report.
func (h *MergeHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	report, err := h.deps.LastReport()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
