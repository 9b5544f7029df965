// Package guide turns an encoded image into a RepairGuide through an external model.
package guide

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"snap-to-spec/api/internal/guide/types"
	"snap-to-spec/api/internal/ingest"
)

// FailureMessage is the single user-facing text for every analysis failure.
const FailureMessage = "Failed to analyze the image. Please try again."

var (
	// ErrEmptyResponse: the model returned no text at all.
	ErrEmptyResponse = errors.New("no response received")
	// ErrNotConfigured: the provider credential (or the provider itself) is missing.
	ErrNotConfigured = errors.New("engine not configured")
	// ErrInFlight: another analysis for the same key has not finished yet.
	ErrInFlight = errors.New("analysis already in flight")
)

// AnalyzeError is what callers see for any failed analysis. The message is always
// FailureMessage; the underlying cause is kept for errors.Is/As and diagnostics.
type AnalyzeError struct {
	Engine string
	Cause  error
}

func (e *AnalyzeError) Error() string { return FailureMessage }
func (e *AnalyzeError) Unwrap() error { return e.Cause }

// Client issues exactly one generation request per call and validates the result.
// Calls are single-flight per key.
type Client struct {
	src     EngineSource
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewClient builds a client. timeout <= 0 leaves the deadline to the caller's context.
func NewClient(src EngineSource, timeout time.Duration) *Client {
	return &Client{
		src:      src,
		timeout:  timeout,
		inflight: make(map[string]struct{}),
	}
}

// Analyze sends img to the engine chosen for key. No retry is attempted.
func (c *Client) Analyze(ctx context.Context, key string, img ingest.Payload) (types.RepairGuide, error) {
	if !c.acquire(key) {
		return c.fail(key, "", ErrInFlight)
	}
	defer c.release(key)

	eng, err := c.src.EngineFor(key)
	if err != nil {
		return c.fail(key, "", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	txt, err := eng.Generate(ctx, img)
	if err != nil {
		return c.fail(key, eng.Name(), err)
	}
	if strings.TrimSpace(txt) == "" {
		return c.fail(key, eng.Name(), ErrEmptyResponse)
	}
	g, err := types.ParseGuide(txt)
	if err != nil {
		return c.fail(key, eng.Name(), err)
	}
	log.Printf("guide: %s analyzed via %s/%s in %v: %q, %d steps",
		key, eng.Name(), eng.GetModel(), time.Since(start).Round(time.Millisecond), g.ItemName, len(g.RepairSteps))
	return g, nil
}

// InFlight reports whether key has an outstanding request.
func (c *Client) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

func (c *Client) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Client) release(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

func (c *Client) fail(key, engine string, cause error) (types.RepairGuide, error) {
	log.Printf("guide: %s analysis failed (engine=%q): %v", key, engine, cause)
	return types.RepairGuide{}, &AnalyzeError{Engine: engine, Cause: cause}
}
