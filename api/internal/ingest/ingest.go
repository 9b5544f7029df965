// Package ingest turns user-supplied files into image payloads ready for transport.
//
// Every input gesture (file selection, drag-and-drop, a Telegram photo, a base64 body)
// ends up in the same validate-then-read path. A rejected file never produces a payload.
package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"snap-to-spec/api/internal/util"
)

// RejectMessage is shown to the user for anything that is not an image.
const RejectMessage = "Please upload an image file."

var (
	ErrNotImage = errors.New(RejectMessage)
	ErrEmpty    = errors.New("image is empty")
	ErrTooLarge = errors.New("image is too large")
)

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes int64 = 20 << 20

// File is a user-selected or dropped file.
type File struct {
	Name        string
	ContentType string // declared by the client; may be empty
	Body        io.Reader
}

// Payload is a normalized in-memory image.
type Payload struct {
	Name   string
	MIME   string
	Data   []byte
	Base64 string // no data: prefix
}

func (p Payload) Size() int { return len(p.Data) }

// Ingestor validates and reads images.
type Ingestor struct {
	MaxBytes int64
}

func New(maxBytes int64) *Ingestor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Ingestor{MaxBytes: maxBytes}
}

// Check validates only the declared type (or the file-name extension when none is declared).
// Hosts call it before fetching the bytes.
func (i *Ingestor) Check(name, contentType string) error {
	_, err := declaredType(name, contentType)
	return err
}

func declaredType(name, contentType string) (string, error) {
	declared := strings.TrimSpace(contentType)
	if declared == "" {
		declared = util.MimeFromName(name)
	}
	if declared != "" && !util.IsImageMIME(declared) {
		return "", ErrNotImage
	}
	return declared, nil
}

// Ingest validates the declared content type and reads the file.
// A file with no declared type is classified by its leading bytes.
func (i *Ingestor) Ingest(ctx context.Context, f File) (Payload, error) {
	declared, err := declaredType(f.Name, f.ContentType)
	if err != nil {
		return Payload{}, err
	}
	if f.Body == nil {
		return Payload{}, ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}

	data, err := io.ReadAll(io.LimitReader(f.Body, i.MaxBytes+1))
	if err != nil {
		return Payload{}, fmt.Errorf("read image: %w", err)
	}
	return i.finish(f.Name, declared, "", data)
}

// IngestBase64 accepts an already encoded image, with or without a data: URI prefix.
func (i *Ingestor) IngestBase64(name, declared, encoded string) (Payload, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && !util.IsImageMIME(declared) {
		return Payload{}, ErrNotImage
	}
	data, hint, err := util.DecodeBase64MaybeDataURL(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("bad base64: %w", err)
	}
	if declared == "" && hint != "" && !util.IsImageMIME(hint) {
		return Payload{}, ErrNotImage
	}
	return i.finish(name, declared, hint, data)
}

func (i *Ingestor) finish(name, declared, hint string, data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, ErrEmpty
	}
	if int64(len(data)) > i.MaxBytes {
		return Payload{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, i.MaxBytes)
	}
	mime := util.PickMIME(declared, hint, data)
	if !util.IsImageMIME(mime) {
		return Payload{}, ErrNotImage
	}
	return Payload{
		Name:   name,
		MIME:   strings.ToLower(mime),
		Data:   data,
		Base64: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// IsRejection reports whether err is a user-facing input rejection rather than an I/O failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotImage) || errors.Is(err, ErrEmpty) || errors.Is(err, ErrTooLarge)
}
