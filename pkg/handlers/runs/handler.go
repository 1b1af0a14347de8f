package runs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/de-tools/campaign-atlas/pkg/adapters"
	"github.com/de-tools/campaign-atlas/pkg/models/api"
	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/models/store"
	"github.com/de-tools/campaign-atlas/pkg/services/dataset"
	"github.com/de-tools/campaign-atlas/pkg/services/processing"
	"github.com/de-tools/campaign-atlas/pkg/store/records"
	runstore "github.com/de-tools/campaign-atlas/pkg/store/runs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	dateLayout    = "2006-01-02"
	maxRunRequest = 32 << 20
)

type Runner interface {
	Run(ctx context.Context, req processing.Request) (*domain.RunResult, error)
}

type Handler struct {
	runner  Runner
	records records.Store
	runs    runstore.Store
}

// NewHandler accepts nil stores; the read endpoints then answer 404.
func NewHandler(runner Runner, recordStore records.Store, runStore runstore.Store) *Handler {
	return &Handler{runner: runner, records: recordStore, runs: runStore}
}

// Create processes the datasets in the request body against the active template.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var req api.RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRunRequest)).Decode(&req); err != nil {
		http.Error(w, "invalid run request: "+err.Error(), http.StatusBadRequest)
		return
	}
	dateRange, err := parseRange(req.From, req.To)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.runner.Run(ctx, processing.Request{
		Loader:    dataset.Static(adapters.MapDatasetsApiToDomain(req.Datasets)),
		DateRange: dateRange,
		Persist:   req.Persist,
	})
	switch {
	case errors.Is(err, processing.ErrPersistenceDisabled):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logger.Error().Err(err).Msg("run failed")
		http.Error(w, "run failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, adapters.MapRunResultDomainToApi(*result))
}

// ListRecords returns stored output rows filtered by source, run and date.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		http.Error(w, "no record store configured", http.StatusNotFound)
		return
	}
	query := r.URL.Query()
	dateRange, err := parseRange(query.Get("from"), query.Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := store.RecordFilter{
		Start:  dateRange.Start,
		End:    domain.DayEnd(dateRange.End),
		Source: query.Get("source"),
		RunID:  query.Get("run_id"),
	}

	stored, err := h.records.Query(r.Context(), filter)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to query records")
		http.Error(w, "failed to query records", http.StatusInternalServerError)
		return
	}
	response := make([]api.Record, 0, len(stored))
	for _, rec := range stored {
		response = append(response, adapters.MapStoreRecordToApi(rec))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		http.Error(w, "no record store configured", http.StatusNotFound)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid 'limit'", http.StatusBadRequest)
			return
		}
		limit = n
	}

	stored, err := h.runs.List(r.Context(), limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to list runs")
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	response := make([]api.Run, 0, len(stored))
	for _, run := range stored {
		response = append(response, adapters.MapStoreRunToApi(run))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		http.Error(w, "no record store configured", http.StatusNotFound)
		return
	}
	id := chi.URLParam(r, "run")

	run, err := h.runs.Get(r.Context(), id)
	switch {
	case errors.Is(err, runstore.ErrNotFound):
		http.Error(w, "run not found", http.StatusNotFound)
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("run", id).Msg("failed to get run")
		http.Error(w, "failed to get run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapStoreRunToApi(*run))
}

func parseRange(from, to string) (domain.DateRange, error) {
	var r domain.DateRange
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return r, errors.New("invalid 'from' date format. Expected format: YYYY-MM-DD")
		}
		r.Start = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return r, errors.New("invalid 'to' date format. Expected format: YYYY-MM-DD")
		}
		r.End = t
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return r, errors.New("'to' must not be before 'from'")
	}
	return r, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("failed to encode response")
	}
}
