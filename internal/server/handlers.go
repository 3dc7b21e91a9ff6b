package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/scoring"
	"github.com/vanshika/tunetraits/internal/service"
)

// RecordReader loads unified records.
type RecordReader interface {
	GetUnifiedRecord(ctx context.Context, id domain.Identity) (domain.UnifiedUserRecord, bool, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger    *slog.Logger
	collector *service.Collector
	sessions  *service.Sessions
	records   RecordReader
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, collector *service.Collector, sessions *service.Sessions, records RecordReader) *APIHandlers {
	return &APIHandlers{
		logger:    logger,
		collector: collector,
		sessions:  sessions,
		records:   records,
	}
}

type sessionResponse struct {
	ID              string          `json:"id"`
	CompletedStages []service.Stage `json:"completedStages"`
}

type answersRequest struct {
	Answers map[string]int `json:"answers"`
}

type scoreResponse struct {
	Saved    *bool                             `json:"saved,omitempty"`
	Scores   domain.TraitScoreSet              `json:"scores"`
	Coverage map[domain.Trait]scoring.Coverage `json:"coverage"`
	Levels   map[domain.Trait]scoring.Level    `json:"levels"`
	Error    string                            `json:"error,omitempty"`
}

type credentialRequest struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type streamingResponse struct {
	Saved   bool                     `json:"saved"`
	Results []service.SnapshotResult `json:"results"`
	Error   string                   `json:"error,omitempty"`
}

type mergeResponse struct {
	Saved   bool   `json:"saved"`
	Section string `json:"section,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *APIHandlers) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s := h.sessions.Create()
	h.logger.Info("session created", "identity", s.Identity().String())
	respondJSON(w, http.StatusCreated, sessionResponse{ID: s.Identity().String(), CompletedStages: []service.Stage{}})
}

// handleSession dispatches /sessions/{id}[/stage[/dataType]].
func (h *APIHandlers) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	parts := strings.Split(rest, "/")

	id, err := domain.ParseIdentity(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		s, err := h.sessions.Lookup(id)
		if err != nil {
			h.fail(w, err, "look up session")
			return
		}
		respondJSON(w, http.StatusOK, sessionResponse{ID: s.Identity().String(), CompletedStages: s.CompletedStages()})
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s, err := h.sessions.Resolve(id)
	if err != nil {
		h.fail(w, err, "resolve session")
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "demographics":
		h.submitDemographics(w, r, s)
	case len(parts) == 2 && parts[1] == "survey":
		h.submitSurvey(w, r, s)
	case len(parts) == 2 && parts[1] == "spotify":
		h.collectStreaming(w, r, s)
	case len(parts) == 3 && parts[1] == "sections":
		h.mergeSection(w, r, s, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *APIHandlers) submitDemographics(w http.ResponseWriter, r *http.Request, s *service.Session) {
	var fields map[string]any
	if err := decodeJSON(r, &fields, false); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	if err := h.collector.SubmitDemographics(r.Context(), s, fields); err != nil {
		status := statusFor(err)
		h.logger.Error("failed to save demographics", "error", err, "identity", s.Identity().String())
		respondJSON(w, status, mergeResponse{Saved: false, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, mergeResponse{Saved: true, Section: domain.SectionDemographics.String()})
}

func (h *APIHandlers) submitSurvey(w http.ResponseWriter, r *http.Request, s *service.Session) {
	answers, err := decodeAnswers(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.collector.SubmitSurvey(r.Context(), s, answers)
	saved := err == nil
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			writeError(w, status, err.Error())
			return
		}
		h.logger.Error("failed to save survey", "error", err, "identity", s.Identity().String())
		resp := newScoreResponse(res)
		resp.Saved = &saved
		resp.Error = err.Error()
		respondJSON(w, status, resp)
		return
	}

	resp := newScoreResponse(res)
	resp.Saved = &saved
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) collectStreaming(w http.ResponseWriter, r *http.Request, s *service.Session) {
	var req credentialRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	cred := domain.StreamingCredential{AccessToken: req.AccessToken, ExpiresAt: req.ExpiresAt}
	report, err := h.collector.CollectStreamingWithCredential(r.Context(), s, cred)
	if err != nil {
		h.logger.Error("streaming collection failed", "error", err, "identity", s.Identity().String())
		respondJSON(w, statusFor(err), streamingResponse{Saved: false, Results: report.Results, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, streamingResponse{Saved: true, Results: report.Results})
}

func (h *APIHandlers) mergeSection(w http.ResponseWriter, r *http.Request, s *service.Session, dataType string) {
	var payload any
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	path, err := h.collector.MergeSnapshot(r.Context(), s, dataType, payload)
	if err != nil {
		h.logger.Error("failed to merge section", "error", err, "identity", s.Identity().String(), "dataType", dataType)
		respondJSON(w, statusFor(err), mergeResponse{Saved: false, Section: path.String(), Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, mergeResponse{Saved: true, Section: path.String()})
}

// handleRecords serves /records/{id} and /records/{id}/profile.
func (h *APIHandlers) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/records/"), "/")
	parts := strings.Split(rest, "/")
	id, err := domain.ParseIdentity(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	switch {
	case len(parts) == 1:
		rec, found, err := h.records.GetUnifiedRecord(r.Context(), id)
		if err != nil {
			h.fail(w, err, "fetch record")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		respondJSON(w, http.StatusOK, rec)
	case len(parts) == 2 && parts[1] == "profile":
		profile, found, err := h.collector.Profile(r.Context(), id)
		if err != nil {
			h.fail(w, err, "build profile")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		respondJSON(w, http.StatusOK, profile)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *APIHandlers) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	answers, err := decodeAnswers(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := answers.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newScoreResponse(scoring.Evaluate(answers)))
}

func (h *APIHandlers) fail(w http.ResponseWriter, err error, op string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "error", err)
	}
	writeError(w, status, err.Error())
}

func newScoreResponse(res scoring.Result) scoreResponse {
	levels := make(map[domain.Trait]scoring.Level, len(res.Scores))
	for trait, score := range res.Scores {
		levels[trait] = scoring.Interpret(score, res.Coverage[trait])
	}
	return scoreResponse{Scores: res.Scores, Coverage: res.Coverage, Levels: levels}
}

func decodeAnswers(r *http.Request) (domain.Answers, error) {
	var req answersRequest
	if err := decodeJSON(r, &req, true); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return domain.ParseAnswers(req.Answers)
}

// statusFor maps collection errors to HTTP statuses. Anything unrecognised is
// treated as a storage failure the client may retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentity),
		errors.Is(err, domain.ErrInvalidSection),
		errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrIncompleteSurvey),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrMissingCredential):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCredentialExpired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoProvider):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func decodeJSON(r *http.Request, dst any, strict bool) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	if strict {
		decoder.DisallowUnknownFields()
	}
	return decoder.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
