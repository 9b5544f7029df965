package handle

import (
	"fmt"
	"net/http"
	"strconv"

	"snap-to-spec/api/internal/session"
)

func (h *Handle) CreateSession(w http.ResponseWriter, r *http.Request) {
	m := h.sessions.Create()
	writeJSON(w, http.StatusCreated, m.Snapshot())
}

func (h *Handle) GetSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (h *Handle) ToggleStep(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: step %q", session.ErrUnknownStep, r.PathValue("n")))
		return
	}
	snap, err := m.Toggle(n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handle) Reset(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := m.Reset()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Retry re-submits the last image of a failed session.
func (h *Handle) Retry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, _, err := m.RetryAsync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// Export serves the printable page; the browser's print dialog does the rest.
func (h *Handle) Export(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	v, ok := m.View()
	if !ok {
		writeError(w, session.ErrNoGuide)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := v.Export(w); err != nil {
		http.Error(w, "export error: "+err.Error(), http.StatusInternalServerError)
	}
}
