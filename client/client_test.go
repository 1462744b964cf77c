package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robertmeta/rag-news-cli/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient starts a backend running handler and returns a client for it
// together with a counter of requests received.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c, &calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestNew_BaseURL(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c, err = New(Config{BaseURL: "https://api.example.com/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", c.BaseURL(), "Trailing slash should be dropped")

	_, err = New(Config{BaseURL: "localhost:8000"})
	assert.Error(t, err, "Should reject URL without scheme")

	_, err = New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err, "Should reject non-http scheme")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("RAG_NEWS_API_BASE_URL", "")
	t.Setenv("RAG_NEWS_API_TIMEOUT", "")
	os.Unsetenv("RAG_NEWS_API_BASE_URL")
	os.Unsetenv("RAG_NEWS_API_TIMEOUT")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Zero(t, cfg.Timeout, "No timeout by default")

	t.Setenv("RAG_NEWS_API_BASE_URL", "http://backend:9000")
	t.Setenv("RAG_NEWS_API_TIMEOUT", "15s")

	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestClient_Health(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathHealth, r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status":"ok","timestamp":"2024-01-15T10:30:00"}`)
	})

	got, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "2024-01-15T10:30:00", got.Timestamp)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_AskReturnsBodyUnchanged(t *testing.T) {
	body := `{"answer":"X [1] Y","citations":[{"index":1,"title":"T","url":"https://example.com/a","published":"2024-01-15T10:30:00Z","snippet":"S"}]}`

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathAsk, r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "  what happened today?  ", req["question"], "Question should be sent as given")

		writeJSON(w, http.StatusOK, body)
	})

	got, err := c.Ask(context.Background(), "  what happened today?  ")
	require.NoError(t, err)

	want := &model.AskResult{
		Answer: "X [1] Y",
		Citations: []model.Citation{{
			Index:     1,
			Title:     "T",
			URL:       "https://example.com/a",
			Published: "2024-01-15T10:30:00Z",
			Snippet:   "S",
		}},
	}
	assert.Equal(t, want, got)
}

func TestClient_AskValidation(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "two characters", query: "AI"},
		{name: "two characters padded", query: "  AI  "},
		{name: "empty", query: ""},
		{name: "whitespace only", query: " \t\n "},
		{name: "two runes multibyte", query: "日本"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"answer":"","citations":[]}`)
			})

			got, err := c.Ask(context.Background(), tt.query)
			assert.Nil(t, got)
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, 400, StatusOf(err))
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Zero(t, calls.Load(), "No request should be sent")
		})
	}
}

func TestClient_AskThreeCharactersIsSent(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"answer":"ok","citations":[]}`)
	})

	_, err := c.Ask(context.Background(), " GDP ")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_ListSources(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PathSources, r.URL.Path)
		writeJSON(w, http.StatusOK, `{"rss":["https://b.example.com/rss","https://a.example.com/rss"]}`)
	})

	got, err := c.ListSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b.example.com/rss", "https://a.example.com/rss"}, got.RSS, "Order should be preserved")
}

func TestClient_RebuildIndex(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathRebuild, r.URL.Path)
		writeJSON(w, http.StatusOK, `{"articles":120,"chunks":845,"status":"completed"}`)
	})

	got, err := c.RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &model.RebuildResult{Articles: 120, Chunks: 845, Status: "completed"}, got)
}

func TestClient_DefaultHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "rag-news-frontend", r.Header.Get("X-Client"))
		assert.Equal(t, "abc-123", r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, `{"status":"ok"}`)
	})

	_, err := c.Health(context.Background(), WithHeader("X-Request-ID", "abc-123"))
	require.NoError(t, err)
}

func TestClient_CallerHeadersOverrideDefaults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		assert.Equal(t, []string{"my-tool"}, r.Header.Values("X-Client"))
		writeJSON(w, http.StatusOK, `{"status":"ok"}`)
	})

	_, err := c.Health(context.Background(),
		WithHeader("content-type", "text/plain"),
		WithHeaders(http.Header{"X-Client": []string{"my-tool"}}),
	)
	require.NoError(t, err)
}

func TestClient_HTTPErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "detail field", status: 503, body: `{"detail":"overloaded"}`, wantMsg: "overloaded"},
		{name: "message wins over detail", status: 500, body: `{"detail":"d","message":"m","error":"e"}`, wantMsg: "m"},
		{name: "detail wins over error", status: 500, body: `{"error":"e","detail":"d"}`, wantMsg: "d"},
		{name: "error field", status: 409, body: `{"error":"Rebuild already in progress"}`, wantMsg: "Rebuild already in progress"},
		{name: "empty message skipped", status: 400, body: `{"message":"","detail":"bad question"}`, wantMsg: "bad question"},
		{name: "non-string detail", status: 422, body: `{"detail":[{"msg":"field required"}]}`, wantMsg: `[{"msg":"field required"}]`},
		{name: "no known field", status: 404, body: `{"reason":"gone"}`, wantMsg: "HTTP 404: Not Found"},
		{name: "unparseable body", status: 502, body: `<html>bad gateway</html>`, wantMsg: "HTTP 502: Bad Gateway"},
		{name: "empty body", status: 500, body: ``, wantMsg: "HTTP 500: Internal Server Error"},
		{name: "null body", status: 503, body: `null`, wantMsg: "HTTP 503: Service Unavailable"},
		{name: "array body", status: 400, body: `["nope"]`, wantMsg: "HTTP 400: Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.ListSources(context.Background())
			require.Error(t, err)

			var he *HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.status, he.Status())
			assert.Equal(t, tt.wantMsg, he.Error())
			assert.Equal(t, KindHTTP, KindOf(err))
		})
	}
}

func TestClient_NullBodyIsInvalidResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "null\n")
	})

	got, err := c.Ask(context.Background(), "what is new?")
	assert.Nil(t, got)
	require.Error(t, err)

	var ie *InvalidResponseError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 200, ie.Status())
	assert.Equal(t, "Invalid response from server", ie.Error())
}

func TestClient_MalformedSuccessBodyIsUnexpected(t *testing.T) {
	for name, body := range map[string]string{
		"empty":      "",
		"truncated":  `{"rss":[`,
		"wrong type": `{"rss":"not-a-list"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})

			_, err := c.ListSources(context.Background())
			require.Error(t, err)

			var ue *UnexpectedError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, 0, ue.Status())
			assert.NotEmpty(t, ue.Error())
		})
	}
}

func TestClient_ConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: baseURL})
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	require.Error(t, err)

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 0, ne.Status())
	assert.Equal(t, NetworkErrorCode, ne.Code())
	assert.Equal(t, "Network error: Unable to connect to backend", ne.Error())
	assert.True(t, IsNetwork(err))
	assert.NotNil(t, ne.Unwrap(), "Cause should be kept")
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.RebuildIndex(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestClient_CancelledContextIsUnexpected(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"ok"}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Health(ctx)
	require.Error(t, err)
	assert.Equal(t, KindUnexpected, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

type stubDoer struct {
	req *http.Request
	res *http.Response
	err error
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.req = req
	return s.res, s.err
}

func TestClient_CustomDoer(t *testing.T) {
	stub := &stubDoer{res: &http.Response{
		StatusCode: http.StatusTeapot,
		Status:     "418 I'm a teapot",
		Body:       io.NopCloser(http.NoBody),
	}}

	c, err := New(Config{BaseURL: "http://backend.test", HTTPClient: stub})
	require.NoError(t, err)

	_, err = c.RebuildIndex(context.Background())
	require.Error(t, err)
	assert.Equal(t, "HTTP 418: I'm a teapot", err.Error())
	assert.Equal(t, 418, StatusOf(err))
	assert.Equal(t, "http://backend.test/ingest/rebuild", stub.req.URL.String())
}

// failingBody returns data and then fails with err.
type failingBody struct {
	data []byte
	err  error
}

func (b *failingBody) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, b.err
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *failingBody) Close() error { return nil }

func TestClient_TruncatedErrorBodyKeepsStatus(t *testing.T) {
	stub := &stubDoer{res: &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Status:     "503 Service Unavailable",
		Body:       &failingBody{data: []byte(`{"det`), err: errors.New("connection reset by peer")},
	}}

	c, err := New(Config{BaseURL: "http://backend.test", HTTPClient: stub})
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindHTTP, KindOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
	assert.Equal(t, "HTTP 503: Service Unavailable", err.Error())
}

func TestClient_TruncatedSuccessBodyIsUnexpected(t *testing.T) {
	stub := &stubDoer{res: &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Body:       &failingBody{data: []byte(`{"sta`), err: errors.New("connection reset by peer")},
	}}

	c, err := New(Config{BaseURL: "http://backend.test", HTTPClient: stub})
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnexpected, KindOf(err))
	assert.Equal(t, 0, StatusOf(err))
	assert.Equal(t, "connection reset by peer", err.Error())
}
