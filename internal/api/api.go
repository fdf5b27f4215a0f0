package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/joescharf/sos/internal/classify"
	"github.com/joescharf/sos/internal/emergency"
	"github.com/joescharf/sos/internal/guidance"
	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/store"
)

// maxAudioBytes caps voice uploads.
const maxAudioBytes = 10 << 20

// Sessions is the session machine as seen by the API.
type Sessions interface {
	CurrentSession() models.EmergencySession
	Subscribe() (<-chan models.EmergencySession, func())
	Start(ctx context.Context, hint models.Category, description string) (models.EmergencySession, error)
	Update(ctx context.Context, description string) (models.EmergencySession, error)
	End(ctx context.Context) (models.EmergencySession, error)
	StartVoice(ctx context.Context, hint models.Category, audio []byte) (models.EmergencySession, error)
	UpdateVoice(ctx context.Context, audio []byte) (models.EmergencySession, error)
}

// Server provides the REST API handlers.
type Server struct {
	sessions   Sessions
	locator    emergency.Locator
	classifier classify.Classifier
	archive    store.Store
	stream     *StreamServer
	logger     *zap.Logger
}

// NewServer creates a new API server.
// The locator and archive may be nil when location or archiving is disabled.
func NewServer(sessions Sessions, locator emergency.Locator, classifier classify.Classifier, archive store.Store, logger *zap.Logger) *Server {
	if classifier == nil {
		classifier = classify.NewDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	return &Server{
		sessions:   sessions,
		locator:    locator,
		classifier: classifier,
		archive:    archive,
		stream:     NewStreamServer(sessions, locator, logger),
		logger:     logger,
	}
}

// Stream returns the websocket stream server.
func (s *Server) Stream() *StreamServer { return s.stream }

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/session", s.getSession)
	mux.HandleFunc("POST /api/v1/session/start", s.startSession)
	mux.HandleFunc("POST /api/v1/session/update", s.updateSession)
	mux.HandleFunc("POST /api/v1/session/end", s.endSession)
	mux.HandleFunc("POST /api/v1/session/voice", s.voiceSession)

	mux.HandleFunc("GET /api/v1/location", s.getLocation)
	mux.HandleFunc("POST /api/v1/location/request", s.requestLocation)

	mux.HandleFunc("POST /api/v1/classify", s.classifyText)
	mux.HandleFunc("GET /api/v1/guidance/{category}", s.getGuidance)
	mux.HandleFunc("GET /api/v1/first-aid", s.listFirstAid)
	mux.HandleFunc("GET /api/v1/first-aid/{id}", s.getFirstAid)

	mux.HandleFunc("GET /api/v1/incidents", s.listIncidents)
	mux.HandleFunc("GET /api/v1/incidents/{id}", s.getIncident)

	mux.HandleFunc("GET /api/v1/stream", s.stream.HandleConnection)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeSessionError maps machine and store errors to HTTP statuses.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, emergency.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, emergency.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, emergency.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseHint accepts an empty hint or any category name ParseCategory knows.
func parseHint(raw string) (models.Category, bool) {
	if raw == "" {
		return "", true
	}
	return models.ParseCategory(raw)
}

// --- Session ---

type startRequest struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

type updateRequest struct {
	Description string `json:"description"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.CurrentSession())
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	hint, ok := parseHint(req.Category)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown category: "+req.Category)
		return
	}

	session, err := s.sessions.Start(r.Context(), hint, req.Description)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	session, err := s.sessions.Update(r.Context(), req.Description)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.End(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// voiceSession takes raw audio. It starts a session when none is active
// and updates the active one otherwise. ?category= supplies a hint.
func (s *Server) voiceSession(w http.ResponseWriter, r *http.Request) {
	hint, ok := parseHint(r.URL.Query().Get("category"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown category: "+r.URL.Query().Get("category"))
		return
	}
	audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}

	var session models.EmergencySession
	if s.sessions.CurrentSession().Active() {
		session, err = s.sessions.UpdateVoice(r.Context(), audio)
	} else {
		session, err = s.sessions.StartVoice(r.Context(), hint, audio)
	}
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// --- Location ---

func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	if s.locator == nil {
		writeError(w, http.StatusServiceUnavailable, "location is disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.locator.Snapshot())
}

// requestLocation triggers a fix and waits for it, or for the client to
// go away. The response is the geolocator state after the attempt.
func (s *Server) requestLocation(w http.ResponseWriter, r *http.Request) {
	if s.locator == nil {
		writeError(w, http.StatusServiceUnavailable, "location is disabled")
		return
	}
	select {
	case <-s.locator.RequestLocation(r.Context()):
	case <-r.Context().Done():
		return
	}
	writeJSON(w, http.StatusOK, s.locator.Snapshot())
}

// --- Classification and guidance ---

type classifyRequest struct {
	Text string `json:"text"`
}

type guidanceResponse struct {
	Category  models.Category `json:"category"`
	Label     string          `json:"label"`
	Steps     []string        `json:"steps"`
	Dedicated bool            `json:"dedicated"`
}

func newGuidanceResponse(c models.Category) guidanceResponse {
	return guidanceResponse{
		Category:  c,
		Label:     c.Label(),
		Steps:     guidance.For(c),
		Dedicated: guidance.HasDedicated(c),
	}
}

func (s *Server) classifyText(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	writeJSON(w, http.StatusOK, newGuidanceResponse(s.classifier.Classify(r.Context(), req.Text)))
}

func (s *Server) getGuidance(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("category")
	c, ok := models.ParseCategory(raw)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category: "+raw)
		return
	}
	writeJSON(w, http.StatusOK, newGuidanceResponse(c))
}

func (s *Server) listFirstAid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, guidance.Guides())
		return
	}
	guides := guidance.Search(q)
	if guides == nil {
		guides = []guidance.Guide{}
	}
	writeJSON(w, http.StatusOK, guides)
}

func (s *Server) getFirstAid(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, ok := guidance.GuideByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "first-aid guide not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- Incidents ---

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "incident archive is disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	incidents, err := s.archive.ListIncidents(r.Context(), limit)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	if incidents == nil {
		incidents = []*models.Incident{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (s *Server) getIncident(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "incident archive is disabled")
		return
	}
	inc, err := s.archive.GetIncident(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}
