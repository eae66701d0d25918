package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/store"
)

type Dependencies struct {
	Logger     *log.Logger
	Addr       string
	Identities store.IdentityStore
	Events     store.AccessEventStore
	Captures   store.UnknownCaptureStore

	// Abort cancels the live biometric session, if any. Nil when no
	// controller is attached (admin-only deployments).
	Abort func(reason string)
}

// Server is the local admin API. It serves enrollment tooling and audit
// inspection only; the access decision path never goes through HTTP.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	identities store.IdentityStore
	events     store.AccessEventStore
	captures   store.UnknownCaptureStore
	abort      func(reason string)
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		identities: d.Identities,
		events:     d.Events,
		captures:   d.Captures,
		abort:      d.Abort,
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/identities", s.handleListIdentities)
	mux.HandleFunc("POST /v1/identities", s.handleCreateIdentity)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/unknown", s.handleListUnknown)
	mux.HandleFunc("POST /v1/abort", s.handleAbort)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.identities.List(r.Context())
	if err != nil {
		s.logger.Printf("list identities error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]identityJSON, 0, len(ids))
	for _, id := range ids {
		out = append(out, identityToJSON(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req createIdentityRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_name", "name is required")
		return
	}

	id, err := s.identities.Create(r.Context(), store.NewIdentity{
		Name:        req.Name,
		TemplateID:  req.TemplateID,
		AccessLevel: req.AccessLevel,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTemplate) {
			writeError(w, http.StatusConflict, "duplicate_template", err.Error())
			return
		}
		s.logger.Printf("create identity error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusCreated, identityToJSON(id))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	evs, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("list events error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]accessEventJSON, 0, len(evs))
	for _, ev := range evs {
		out = append(out, accessEventToJSON(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListUnknown(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	caps, err := s.captures.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("list unknown error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]unknownCaptureJSON, 0, len(caps))
	for _, c := range caps {
		out = append(out, unknownCaptureToJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if s.abort == nil {
		writeError(w, http.StatusServiceUnavailable, "no_controller", "no session controller attached")
		return
	}

	var req abortRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.Reason == "" {
		req.Reason = "operator request"
	}

	s.abort(req.Reason)
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// queryLimit parses ?limit=N, falling back to def for missing or bad values.
func queryLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
