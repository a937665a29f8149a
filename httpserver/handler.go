package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/vaccine-ledger/api"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/ruteri/vaccine-ledger/ledger"
	"github.com/xeipuuv/gojsonschema"
)

// maxBodySize is the default request body limit (64KB); ledger requests are small.
const maxBodySize = 64 * 1024

// Handler serves the ledger API on top of an interfaces.Ledger.
type Handler struct {
	ledger       interfaces.Ledger
	log          *slog.Logger
	maxBodyBytes int64
}

// NewHandler creates a handler for l. maxBodyBytes <= 0 selects the default limit.
func NewHandler(l interfaces.Ledger, log *slog.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = maxBodySize
	}
	return &Handler{ledger: l, log: log, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes mounts the API under /api/v1. Mutations require a signature
// verified by auth; queries are public.
func (h *Handler) RegisterRoutes(r chi.Router, auth *Authenticator) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.limitBody)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Post("/researchers", h.HandleRegisterResearcher)
			r.Post("/submissions", h.HandleSubmitGenomeData)
			r.Post("/validators", h.HandleAddValidator)
			r.Post("/snapshots", h.HandleExportSnapshot)
		})

		r.Get("/researchers/{principal}", h.HandleGetResearcher)
		r.Get("/submissions/{genome_id}", h.HandleGetSubmission)
		r.Get("/validators/{principal}", h.HandleGetValidator)
		r.Get("/validators", h.HandleListValidators)
		r.Get("/status", h.HandleStatus)
		r.Get("/events", h.HandleEvents)
	})
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// HandleRegisterResearcher processes POST /api/v1/researchers.
func (h *Handler) HandleRegisterResearcher(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req api.RegisterResearcherRequest
	if !h.decode(w, r, registerResearcherSchema, &req) {
		return
	}

	researcher, err := h.ledger.RegisterResearcher(r.Context(), caller, req.Institution, req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.ResearcherResponse{OK: true, Researcher: researcher})
}

// HandleSubmitGenomeData processes POST /api/v1/submissions.
func (h *Handler) HandleSubmitGenomeData(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req api.SubmitGenomeRequest
	if !h.decode(w, r, submitGenomeSchema, &req) {
		return
	}

	submission, err := h.ledger.SubmitGenomeData(r.Context(), caller, req.GenomeID, req.DataHash, req.GenomeType, req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SubmissionResponse{OK: true, Submission: submission})
}

// HandleAddValidator processes POST /api/v1/validators. Only the owner succeeds.
func (h *Handler) HandleAddValidator(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req api.AddValidatorRequest
	if !h.decode(w, r, addValidatorSchema, &req) {
		return
	}

	validator, err := h.ledger.AddValidator(r.Context(), caller, req.Validator, req.Weight)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.ValidatorResponse{OK: true, Validator: validator})
}

// HandleExportSnapshot processes POST /api/v1/snapshots. Only the owner succeeds.
func (h *Handler) HandleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	receipt, err := h.ledger.ExportSnapshot(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SnapshotResponse{OK: true, SnapshotReceipt: *receipt})
}

func (h *Handler) HandleGetResearcher(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalParam(w, r)
	if !ok {
		return
	}

	researcher, err := h.ledger.Researcher(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ResearcherResponse{OK: true, Researcher: researcher})
}

func (h *Handler) HandleGetSubmission(w http.ResponseWriter, r *http.Request) {
	// chi routes on RawPath when it is set, leaving the parameter escaped.
	genomeID := chi.URLParam(r, "genome_id")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(genomeID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: "invalid genome id encoding"})
			return
		}
		genomeID = unescaped
	}

	submission, err := h.ledger.Submission(r.Context(), genomeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SubmissionResponse{OK: true, Submission: submission})
}

func (h *Handler) HandleGetValidator(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalParam(w, r)
	if !ok {
		return
	}

	validator, err := h.ledger.Validator(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ValidatorResponse{OK: true, Validator: validator})
}

func (h *Handler) HandleListValidators(w http.ResponseWriter, r *http.Request) {
	validators, err := h.ledger.Validators(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if validators == nil {
		validators = []interfaces.Validator{}
	}
	writeJSON(w, http.StatusOK, api.ValidatorsResponse{OK: true, Validators: validators, TotalWeight: interfaces.TotalWeight(validators)})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.ledger.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatusResponse{OK: true, Status: *status})
}

// HandleEvents serves GET /api/v1/events?from=&limit=.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var (
		from  uint64 = 1
		limit int
		err   error
	)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: "invalid from parameter"})
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: "invalid limit parameter"})
			return
		}
	}

	events, err := h.ledger.Events(r.Context(), from, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := api.EventsResponse{OK: true, Events: events}
	if resp.Events == nil {
		resp.Events = []interfaces.Event{}
	}
	effective := limit
	if effective <= 0 {
		effective = ledger.DefaultEventPage
	} else if effective > ledger.MaxEventPage {
		effective = ledger.MaxEventPage
	}
	if len(events) == effective {
		resp.Next = events[len(events)-1].Height + 1
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads the body, validates it against schema and unmarshals it into
// out. It writes the error response itself and reports whether to continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, out any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{Message: "request body too large"})
			return false
		}
		h.log.Error("Failed to read request body", "err", err)
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: "failed to read request body"})
		return false
	}

	if err := validatePayload(schema, body); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: err.Error()})
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: err.Error()})
		return false
	}
	return true
}

// writeError maps ledger rejections to 4xx with their code, missing records to
// 404 and everything else to 5xx.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if code, ok := interfaces.CodeOf(err); ok {
		h.log.Debug("Operation rejected", "path", r.URL.Path, "code", code.String(), "err", err)
		writeJSON(w, statusForCode(code), api.ErrorResponse{Err: code, Message: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Message: err.Error()})
		return
	case errors.Is(err, ledger.ErrSnapshotsDisabled):
		status = http.StatusNotImplemented
	case errors.Is(err, ledger.ErrOracleUnavailable),
		errors.Is(err, interfaces.ErrBackendUnavailable),
		errors.Is(err, interfaces.ErrContentNotFound):
		status = http.StatusBadGateway
	}

	h.log.Error("Request failed", "path", r.URL.Path, "status", status, "err", err)
	writeJSON(w, status, api.ErrorResponse{Message: err.Error()})
}

func statusForCode(code interfaces.ErrorCode) int {
	switch code {
	case interfaces.CodeUnauthorized, interfaces.CodeInsufficientFunds:
		return http.StatusForbidden
	case interfaces.CodeAlreadyRegistered, interfaces.CodeDuplicateSubmission:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func principalParam(w http.ResponseWriter, r *http.Request) (interfaces.Principal, bool) {
	principal, err := interfaces.NewPrincipalFromHex(chi.URLParam(r, "principal"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: err.Error()})
		return interfaces.Principal{}, false
	}
	return principal, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
