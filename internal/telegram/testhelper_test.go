package telegram

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testToken = "TEST_TOKEN"

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func discardLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

type methodHandler func(w http.ResponseWriter, r *http.Request, form url.Values)

// fakeAPI is a Bot API server answering getMe and whatever methods a test
// registers. It records the form of every call.
type fakeAPI struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	handlers map[string]methodHandler
	calls    []recordedCall
}

type recordedCall struct {
	Method string
	Form   url.Values
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t, handlers: make(map[string]methodHandler)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) handle(method string, h methodHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeAPI) endpoint() string {
	return f.srv.URL + "/bot%s/%s"
}

func (f *fakeAPI) callsTo(method string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/") {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(f.t, w, map[string]interface{}{"ok": false, "error_code": 404, "description": "Not Found"})
		return
	}
	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: method, Form: r.PostForm})
	h, ok := f.handlers[method]
	f.mu.Unlock()

	switch {
	case ok:
		h(w, r, r.PostForm)
	case method == "getMe":
		writeJSON(f.t, w, map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"id": 1, "is_bot": true, "first_name": "Kiran", "username": "kiran_bot"},
		})
	default:
		writeJSON(f.t, w, map[string]interface{}{"ok": true, "result": true})
	}
}

func newTestTransport(t *testing.T, f *fakeAPI) *BotTransport {
	t.Helper()
	tr, err := NewBot(BotConfig{Token: testToken, Endpoint: f.endpoint()}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}
