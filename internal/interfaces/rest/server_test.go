package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/server"
	"github.com/FreePeak/smart-slides/internal/usecases/slides"
	fakes "github.com/FreePeak/smart-slides/internal/testutil"
)

type fakeSlideGenerator struct {
	mu      sync.Mutex
	deck    domain.Deck
	err     error
	prompts []string
}

func (f *fakeSlideGenerator) Generate(ctx context.Context, prompt string) (domain.Deck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.deck, f.err
}

func (f *fakeSlideGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func newTestServer(gen SlideGenerator) *Server {
	return NewServer(Config{
		Addr:      "127.0.0.1:0",
		Generator: gen,
		WebSocket: server.WebSocketOptions{ReadLimit: 64 * 1024, WriteTimeout: time.Second},
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	s := newTestServer(nil)

	rec := do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	goldie.New(t).Assert(t, "status", rec.Body.Bytes())
}

func TestGenerateSlides_Success(t *testing.T) {
	gen := &fakeSlideGenerator{deck: domain.Deck{Slides: []domain.Slide{
		{Title: "Intro", Content: []string{"What", "Why"}, Theme: "professional"},
		{Title: "Wrap-up", Content: []string{}, Theme: "minimalist"},
	}}}
	s := newTestServer(gen)

	rec := do(t, s, http.MethodPost, "/api/generate-slides", `{"query":"Go concurrency"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Go concurrency"}, gen.prompts)

	goldie.New(t).Assert(t, "generate_slides", rec.Body.Bytes())
}

func TestGenerateSlides_EmptyQuery(t *testing.T) {
	for _, body := range []string{`{"query":""}`, `{"query":"   \n\t"}`, `{}`} {
		t.Run(body, func(t *testing.T) {
			gen := &fakeSlideGenerator{}
			s := newTestServer(gen)

			rec := do(t, s, http.MethodPost, "/api/generate-slides", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, gen.calls(), "generator must not run for an empty query")
			goldie.New(t).Assert(t, "empty_query", rec.Body.Bytes())
		})
	}
}

func TestGenerateSlides_InvalidBody(t *testing.T) {
	gen := &fakeSlideGenerator{}
	s := newTestServer(gen)

	for _, body := range []string{``, `not json`, `{"query": 42}`} {
		rec := do(t, s, http.MethodPost, "/api/generate-slides", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), `"detail":"Invalid request body`)
	}
	assert.Equal(t, 0, gen.calls())
}

func TestGenerateSlides_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "missing credential",
			err:        domain.ErrMissingCredential,
			wantStatus: http.StatusBadRequest,
			wantDetail: "OPENAI_API_KEY environment variable is not set",
		},
		{
			name:       "invalid deck",
			err:        domain.NewGenerationError(domain.KindValidation, "Invalid slide deck", domain.NewValidationError("slides", "'slides' must be a list")),
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid slide deck: 'slides' must be a list",
		},
		{
			name:       "malformed json",
			err:        domain.NewGenerationError(domain.KindMalformedJSON, "Failed to parse JSON response", nil),
			wantStatus: http.StatusBadRequest,
			wantDetail: "Failed to parse JSON response",
		},
		{
			name:       "rate limit",
			err:        domain.NewGenerationError(domain.KindRateLimit, "OpenAI rate limit exceeded", nil),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Error generating slides: OpenAI rate limit exceeded",
		},
		{
			name:       "untyped error",
			err:        errors.New("kaboom"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Error generating slides: kaboom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeSlideGenerator{err: tt.err})

			rec := do(t, s, http.MethodPost, "/api/generate-slides", `{"query":"topic"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantDetail)
		})
	}
}

func TestGenerateSlides_ThroughService(t *testing.T) {
	text := &fakes.FakeTextGenerator{Response: `{"slides":[{"title":"","content":[],"theme":"x"}]}`}
	s := newTestServer(slides.NewService(slides.Config{Generator: text}))

	rec := do(t, s, http.MethodPost, "/api/generate-slides", `{"query":"topic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Slide title must be a non-empty string")
	assert.Equal(t, 1, text.Calls())
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(nil)

	rec := do(t, s, http.MethodGet, "/api/generate-slides", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(Config{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/generate-slides", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(nil)
	do(t, s, http.MethodGet, "/api/status", "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `smartslides_api_requests_total{route="GET /api/status",status="200"}`)
}

func TestServeAndStop(t *testing.T) {
	s := newTestServer(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	url := "ws://" + ln.Addr().String() + "/ws/chat/alice"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Registry().Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestTracingMiddlewareRecordsSpan(t *testing.T) {
	original := otel.GetTracerProvider()
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	s := newTestServer(nil)
	rec := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/status", spans[0].Name())

	var status int64
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(http.StatusOK), status)
}
