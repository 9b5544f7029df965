package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
)

type Handle struct {
	sessions *session.Store
	ing      *ingest.Ingestor
	an       session.Analyzer
}

func New(sessions *session.Store, ing *ingest.Ingestor, an session.Analyzer) *Handle {
	return &Handle{
		sessions: sessions,
		ing:      ing,
		an:       an,
	}
}

// Register mounts every route on mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/analyze", h.Analyze)
	mux.HandleFunc("POST /v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("POST /v1/sessions/{id}/image", h.SubmitImage)
	mux.HandleFunc("POST /v1/sessions/{id}/retry", h.Retry)
	mux.HandleFunc("POST /v1/sessions/{id}/steps/{n}/toggle", h.ToggleStep)
	mux.HandleFunc("POST /v1/sessions/{id}/reset", h.Reset)
	mux.HandleFunc("GET /v1/sessions/{id}/export", h.Export)
	mux.HandleFunc("GET /v1/sessions/{id}/ws", h.Stream)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: messageFor(err)})
}

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	var ae *guide.AnalyzeError
	switch {
	case errors.Is(err, ingest.ErrNotImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrEmpty), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnknownStep):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNoGuide), errors.Is(err, session.ErrNoImage):
		return http.StatusConflict
	case errors.As(err, &ae):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// messageFor keeps internals out of responses; the cause is logged where it happens.
func messageFor(err error) string {
	switch {
	case errors.Is(err, ingest.ErrNotImage):
		return ingest.RejectMessage
	case statusFor(err) == http.StatusInternalServerError:
		return "internal error"
	}
	return err.Error()
}

func (h *Handle) session(w http.ResponseWriter, r *http.Request) (*session.Machine, bool) {
	m, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, session.ErrNotFound)
		return nil, false
	}
	return m, true
}
