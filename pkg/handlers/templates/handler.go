package templates

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/de-tools/campaign-atlas/pkg/adapters"
	"github.com/de-tools/campaign-atlas/pkg/models/api"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
	"github.com/rs/zerolog"
)

// maxTemplateSize caps uploaded template CSVs.
const maxTemplateSize = 1 << 20

type Handler struct {
	manager template.Manager
}

func NewHandler(manager template.Manager) *Handler {
	return &Handler{manager: manager}
}

// Validate checks an uploaded template CSV without activating it.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	rows, err := template.ParseCSV(http.MaxBytesReader(w, r.Body, maxTemplateSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := h.manager.Validate(rows)
	writeJSON(w, r, http.StatusOK, adapters.MapValidationResultDomainToApi(result))
}

// Activate validates an uploaded template CSV and makes it the active
// configuration. A template with errors is rejected with 422.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	rows, err := template.ParseCSV(http.MaxBytesReader(w, r.Body, maxTemplateSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	draft := template.NewDraft(rows)
	err = h.manager.Apply(r.Context(), draft)
	var invalid *template.ValidationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, r, http.StatusUnprocessableEntity, api.ActivationResponse{
			Validation: adapters.MapValidationResultDomainToApi(invalid.Result),
		})
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to activate template")
		http.Error(w, "failed to activate template", http.StatusInternalServerError)
	default:
		writeJSON(w, r, http.StatusOK, api.ActivationResponse{
			Configuration: adapters.MapConfigurationDomainToApi(draft.Config),
			Validation:    adapters.MapValidationResultDomainToApi(draft.Result),
		})
	}
}

func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, adapters.MapConfigurationDomainToApi(h.manager.Active()))
}

// ExportActive writes the active configuration in the template CSV format.
func (h *Handler) ExportActive(w http.ResponseWriter, r *http.Request) {
	cfg := h.manager.Active()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="template-`+cfg.Version+`.csv"`)
	if err := template.WriteCSV(w, cfg.Definitions); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to export template")
	}
}

// Reset restores the built-in default template.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Reset(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to reset template")
		http.Error(w, "failed to reset template", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapConfigurationDomainToApi(h.manager.Active()))
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
