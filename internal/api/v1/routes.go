// Package v1 provides the read-only status API handlers.
package v1

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seedpost/seedpost/internal/api/common"
	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/versions"
)

// Routes serves the status API from read-only sources
type Routes struct {
	state    StateReader
	ledger   LedgerReader
	settings []config.Setting
}

// NewRoutes creates a Routes instance
func NewRoutes(state StateReader, ledger LedgerReader, settings []config.Setting) *Routes {
	return &Routes{
		state:    state,
		ledger:   ledger,
		settings: settings,
	}
}

// Router creates the /api/v1 router
func Router(state StateReader, ledger LedgerReader, settings []config.Setting) http.Handler {
	routes := NewRoutes(state, ledger, settings)

	r := chi.NewRouter()
	r.Get("/status", routes.getStatus)
	r.Get("/ledger", routes.listLedger)
	r.Get("/ledger/{key}", routes.getLedgerRecord)

	return r
}

// getStatus handles GET /api/v1/status
func (rr *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, StatusResponse{
		State:  rr.state.Snapshot(),
		Config: rr.settings,
	}, http.StatusOK)
}

// listLedger handles GET /api/v1/ledger. The optional limit query parameter
// keeps the most recent records.
func (rr *Routes) listLedger(w http.ResponseWriter, r *http.Request) {
	records := rr.ledger.Records()
	total := len(records)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			common.WriteErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if limit < len(records) {
			records = records[len(records)-limit:]
		}
	}

	out := make([]LedgerRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, toLedgerRecord(rec))
	}
	common.WriteJSONResponse(w, LedgerResponse{Records: out, Total: total}, http.StatusOK)
}

// getLedgerRecord handles GET /api/v1/ledger/{key}
func (rr *Routes) getLedgerRecord(w http.ResponseWriter, r *http.Request) {
	key, err := common.URLParam(r, "key")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !rr.ledger.Has(key) {
		common.WriteErrorResponse(w, "record not found", http.StatusNotFound)
		return
	}
	for _, rec := range rr.ledger.Records() {
		if rec.Key == key {
			common.WriteJSONResponse(w, toLedgerRecord(rec), http.StatusOK)
			return
		}
	}
	common.WriteErrorResponse(w, "record not found", http.StatusNotFound)
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(state StateReader) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(state))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once the first discovery scan finished or
// the pipeline is paused
func readinessHandler(state StateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		view := state.Snapshot()
		if view.LastScanAt == nil && view.Enabled {
			common.WriteErrorResponse(w, "first scan has not completed", http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
