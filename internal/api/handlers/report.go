package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/report"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// ReportHandler serves built report contexts
// ⭐ SSOT: 리포트 조회 API는 이 구조체에서만 (읽기 전용)
type ReportHandler struct {
	store  report.Store
	logger *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(store report.Store, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		store:  store,
		logger: log.WithComponent("report_handler"),
	}
}

// GetLatest returns the latest report context as JSON
// GET /api/reports/latest
func (h *ReportHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.latest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rc)
}

// GetLatestMarkdown returns the latest report rendered as markdown
// GET /api/reports/latest/markdown
func (h *ReportHandler) GetLatestMarkdown(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.latest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report.RenderMarkdown(rc)))
}

// GetByDate returns the report context for one date
// GET /api/reports/{date}
func (h *ReportHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(contracts.DateLayout, mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	rc, err := h.store.Get(r.Context(), date)
	if errors.Is(err, report.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No report for "+date.Format(contracts.DateLayout))
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load report")
		respondError(w, http.StatusInternalServerError, "Failed to load report")
		return
	}
	respondJSON(w, http.StatusOK, rc)
}

// CandidatesResponse is the body of GetLatestCandidates
type CandidatesResponse struct {
	AsOf       string                `json:"as_of_date"`
	RunID      string                `json:"run_id"`
	Count      int                   `json:"count"`
	Candidates []contracts.Candidate `json:"candidates"`
}

// GetLatestCandidates returns the consolidated list of the latest report,
// optionally filtered by source origin and truncated
// GET /api/reports/latest/candidates?origin=momentum&limit=10
func (h *ReportHandler) GetLatestCandidates(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected non-negative integer)")
			return
		}
		limit = n
	}
	origin := r.URL.Query().Get("origin")

	rc, ok := h.latest(w, r)
	if !ok {
		return
	}

	cands := make([]contracts.Candidate, 0)
	for _, c := range rc.Candidates() {
		if origin != "" && !hasOrigin(c, origin) {
			continue
		}
		cands = append(cands, c)
	}
	cands = contracts.Truncate(cands, limit)

	respondJSON(w, http.StatusOK, CandidatesResponse{
		AsOf:       rc.AsOf().Format(contracts.DateLayout),
		RunID:      rc.RunID(),
		Count:      len(cands),
		Candidates: cands,
	})
}

func (h *ReportHandler) latest(w http.ResponseWriter, r *http.Request) (*report.Context, bool) {
	rc, err := h.store.Latest(r.Context())
	if errors.Is(err, report.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No report available yet")
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest report")
		respondError(w, http.StatusInternalServerError, "Failed to load report")
		return nil, false
	}
	return rc, true
}

func hasOrigin(c contracts.Candidate, origin string) bool {
	for _, o := range c.SourceOrigins() {
		if o == origin {
			return true
		}
	}
	return false
}
