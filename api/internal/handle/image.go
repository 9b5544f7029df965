package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
)

// multipart framing on top of the image itself
const formOverhead = 1 << 20

type imageJSON struct {
	Name     string `json:"name"`
	ImageB64 string `json:"image_b64"`
	MIME     string `json:"mime"`
}

// readImage accepts the three upload shapes: a multipart "file" field (file picker),
// a raw image body (drag-and-drop) and JSON with base64 data.
func (h *Handle) readImage(r *http.Request) (ingest.Payload, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	mt = strings.ToLower(mt)

	switch {
	case strings.HasPrefix(mt, "multipart/"):
		if err := r.ParseMultipartForm(h.ing.MaxBytes); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return ingest.Payload{}, ingest.ErrTooLarge
			}
			return ingest.Payload{}, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return ingest.Payload{}, ingest.ErrEmpty
			}
			return ingest.Payload{}, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		defer f.Close()
		return h.ing.Ingest(r.Context(), ingest.File{
			Name:        hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Body:        f,
		})

	case mt == "application/json":
		var req imageJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ingest.Payload{}, fmt.Errorf("%w: bad json: %v", errBadRequest, err)
		}
		if strings.TrimSpace(req.ImageB64) == "" {
			return ingest.Payload{}, ingest.ErrEmpty
		}
		p, err := h.ing.IngestBase64(req.Name, req.MIME, req.ImageB64)
		if err != nil && !ingest.IsRejection(err) {
			return p, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return p, err

	default:
		return h.ing.Ingest(r.Context(), ingest.File{
			Name:        r.URL.Query().Get("name"),
			ContentType: mt,
			Body:        r.Body,
		})
	}
}

func (h *Handle) limitBody(w http.ResponseWriter, r *http.Request) {
	// base64 inflates by 4/3
	r.Body = http.MaxBytesReader(w, r.Body, h.ing.MaxBytes*4/3+formOverhead)
}

// SubmitImage validates the upload, moves the session to Loading and analyzes in the background.
// A rejected upload leaves the session untouched.
func (h *Handle) SubmitImage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	img, err := h.readImage(r)
	if err != nil {
		log.Printf("session %s: upload rejected: %v", m.ID(), err)
		writeError(w, err)
		return
	}
	snap, _, err := m.SubmitAsync(r.Context(), img)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// Analyze is the one-shot form: upload in, guide out, no stored session.
// The deadline comes from X-Request-Timeout (seconds) or ?timeoutSec=.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	img, err := h.readImage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if d := requestTimeout(r); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	m := session.NewMachine("oneshot-"+strconv.FormatInt(time.Now().UnixNano(), 36), h.an)
	snap, err := m.Submit(ctx, img)
	if err != nil {
		writeError(w, err)
		return
	}
	if snap.Phase == session.Failure {
		writeJSON(w, http.StatusBadGateway, snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func requestTimeout(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	if v, _ := strconv.Atoi(ts); v > 0 {
		return time.Duration(v) * time.Second
	}
	return 0
}
