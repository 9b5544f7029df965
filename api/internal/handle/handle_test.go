package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/session"
)

const phoneJSON = `{"itemName":"Smartphone","damageAnalysis":"Cracked screen","difficultyLevel":"Advanced",
"toolsRequired":["Heat gun","Suction cup"],"estimatedTime":"45-60 mins",
"safetyWarnings":["Disconnect battery before repair"],
"repairSteps":[{"stepNumber":1,"action":"Heat","explanation":"Soften adhesive"},
{"stepNumber":2,"action":"Lift","explanation":"Pry the glass"}]}`

// smallest valid PNG header is enough for content sniffing
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

type fixture struct {
	srv   *httptest.Server
	store *session.Store
}

func newFixture(t *testing.T, eng guide.EngineFunc) *fixture {
	t.Helper()
	client := guide.NewClient(guide.NewManager(eng), 0)
	st, err := session.NewStore(8, client)
	require.NoError(t, err)

	mux := http.NewServeMux()
	New(st, ingest.New(1<<20), client).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: st}
}

func ok(out string) guide.EngineFunc {
	return func(context.Context, ingest.Payload) (string, error) { return out, nil }
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func (f *fixture) post(t *testing.T, path, contentType string, body io.Reader) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, contentType, body)
	require.NoError(t, err)
	return resp
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	resp := f.post(t, "/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "idle", body["phase"])
	return body["session_id"].(string)
}

func (f *fixture) wait(t *testing.T, id string) session.Snapshot {
	t.Helper()
	m, err := f.store.Get(id)
	require.NoError(t, err)
	m.Wait()
	return m.Snapshot()
}

func multipartBody(t *testing.T, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmit_Multipart(t *testing.T) {
	f := newFixture(t, ok(phoneJSON))
	id := f.createSession(t)

	body, ct := multipartBody(t, "phone.png", "image/png", pngBytes)
	resp := f.post(t, "/v1/sessions/"+id+"/image", ct, body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	got := decode(t, resp)
	assert.Equal(t, "loading", got["phase"])
	assert.Equal(t, true, got["is_loading"])

	snap := f.wait(t, id)
	assert.Equal(t, session.Success, snap.Phase)
	assert.Equal(t, "Smartphone", snap.Data.ItemName)
}

func TestSubmit_RawBody(t *testing.T) {
	f := newFixture(t, ok(phoneJSON))
	id := f.createSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/image?name=drop.png", "image/png", bytes.NewReader(pngBytes))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, session.Success, f.wait(t, id).Phase)
}

func TestSubmit_JSONBase64(t *testing.T) {
	var seen ingest.Payload
	f := newFixture(t, func(_ context.Context, img ingest.Payload) (string, error) {
		seen = img
		return phoneJSON, nil
	})
	id := f.createSession(t)

	payload, _ := json.Marshal(imageJSON{ImageB64: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)})
	resp := f.post(t, "/v1/sessions/"+id+"/image", "application/json", bytes.NewReader(payload))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	f.wait(t, id)
	assert.Equal(t, "image/png", seen.MIME)
	assert.Equal(t, pngBytes, seen.Data)
}

func TestSubmit_NonImageRejectedWithoutStateChange(t *testing.T) {
	f := newFixture(t, ok(phoneJSON))
	id := f.createSession(t)

	cases := []struct {
		name string
		ct   string
		body func() io.Reader
	}{
		{"raw text", "text/plain", func() io.Reader { return strings.NewReader("hello") }},
		{"multipart pdf", "", nil},
		{"json declared pdf", "application/json", func() io.Reader {
			return strings.NewReader(`{"image_b64":"aGVsbG8=","mime":"application/pdf"}`)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ct, body := tc.ct, io.Reader(nil)
			if tc.body != nil {
				body = tc.body()
			} else {
				var buf *bytes.Buffer
				buf, ct = multipartBody(t, "manual.pdf", "application/pdf", []byte("%PDF-1.4"))
				body = buf
			}
			resp := f.post(t, "/v1/sessions/"+id+"/image", ct, body)
			assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
			assert.Equal(t, ingest.RejectMessage, decode(t, resp)["error"])

			m, err := f.store.Get(id)
			require.NoError(t, err)
			assert.Equal(t, session.Idle, m.Snapshot().Phase)
		})
	}
}

func TestSubmit_BusyWhileLoading(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(context.Context, ingest.Payload) (string, error) {
		<-release
		return phoneJSON, nil
	})
	id := f.createSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/image", "image/png", bytes.NewReader(pngBytes))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/v1/sessions/"+id+"/image", "image/png", bytes.NewReader(pngBytes))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/v1/sessions/"+id+"/reset", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	close(release)
	assert.Equal(t, session.Success, f.wait(t, id).Phase)
}

func TestSubmit_FailureIsNormalized(t *testing.T) {
	f := newFixture(t, ok(""))
	id := f.createSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/image", "image/png", bytes.NewReader(pngBytes))
	resp.Body.Close()
	f.wait(t, id)

	resp, err := http.Get(f.srv.URL + "/v1/sessions/" + id)
	require.NoError(t, err)
	got := decode(t, resp)
	assert.Equal(t, "failure", got["phase"])
	assert.Equal(t, guide.FailureMessage, got["error"])
	assert.Nil(t, got["data"])
}

func TestToggleResetAndExport(t *testing.T) {
	f := newFixture(t, ok(phoneJSON))
	id := f.createSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/steps/1/toggle", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no guide yet")
	resp.Body.Close()

	resp, err := http.Get(f.srv.URL + "/v1/sessions/" + id + "/export")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/v1/sessions/"+id+"/image", "image/png", bytes.NewReader(pngBytes))
	resp.Body.Close()
	f.wait(t, id)

	resp = f.post(t, "/v1/sessions/"+id+"/steps/2/toggle", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode(t, resp)
	assert.Equal(t, []any{float64(2)}, got["completed_steps"])
	assert.Equal(t, false, got["all_complete"])

	resp = f.post(t, "/v1/sessions/"+id+"/steps/9/toggle", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(f.srv.URL + "/v1/sessions/" + id + "/export")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), "window.print()")
	assert.Contains(t, string(page), "Smartphone")

	resp = f.post(t, "/v1/sessions/"+id+"/reset", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode(t, resp)
	assert.Equal(t, "idle", got["phase"])
	assert.Nil(t, got["data"])
	assert.Nil(t, got["error"])
	assert.Empty(t, got["completed_steps"])
}

func TestRetry(t *testing.T) {
	calls := 0
	f := newFixture(t, func(context.Context, ingest.Payload) (string, error) {
		calls++
		if calls == 1 {
			return "", nil
		}
		return phoneJSON, nil
	})
	id := f.createSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/retry", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/v1/sessions/"+id+"/image", "image/png", bytes.NewReader(pngBytes))
	resp.Body.Close()
	require.Equal(t, session.Failure, f.wait(t, id).Phase)

	resp = f.post(t, "/v1/sessions/"+id+"/retry", "", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, session.Success, f.wait(t, id).Phase)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, ok(phoneJSON))
	resp, err := http.Get(f.srv.URL + "/v1/sessions/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAnalyze_OneShot(t *testing.T) {
	f := newFixture(t, ok(phoneJSON))
	resp := f.post(t, "/v1/analyze", "image/png", bytes.NewReader(pngBytes))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode(t, resp)
	assert.Equal(t, "success", got["phase"])
	assert.Equal(t, "orange", got["badge"].(map[string]any)["color"])

	bad := newFixture(t, ok("not json"))
	resp = bad.post(t, "/v1/analyze", "image/png", bytes.NewReader(pngBytes))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, guide.FailureMessage, decode(t, resp)["error"])
	assert.Zero(t, bad.store.Len())
}

func TestRequestTimeout(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/analyze?timeoutSec=5", nil)
	assert.Equal(t, 5*time.Second, requestTimeout(r))
	r.Header.Set("X-Request-Timeout", "30")
	assert.Equal(t, 30*time.Second, requestTimeout(r))
	assert.Zero(t, requestTimeout(httptest.NewRequest(http.MethodPost, "/", nil)))
}

func TestStream(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(context.Context, ingest.Payload) (string, error) {
		<-release
		return phoneJSON, nil
	})
	id := f.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first["event"])

	resp := f.post(t, "/v1/sessions/"+id+"/image", "image/png", bytes.NewReader(pngBytes))
	resp.Body.Close()
	close(release)

	var kinds []string
	for len(kinds) < 2 {
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		kinds = append(kinds, ev["event"].(string))
	}
	assert.Equal(t, []string{"loading", "success"}, kinds)
}
