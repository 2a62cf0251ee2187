package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"eternyx-relay/internal/domain"
	"eternyx-relay/internal/usecase"
)

// stubProvider sits behind a real RelayService so handler tests exercise the
// full validation and prompt path.
type stubProvider struct {
	answer   string
	err      error
	calls    int
	messages []domain.ChatMessage
}

func (s *stubProvider) Complete(_ context.Context, _ string, messages []domain.ChatMessage) (string, error) {
	s.calls++
	s.messages = messages
	return s.answer, s.err
}

type stubRelayer struct {
	err error
}

func (s *stubRelayer) Relay(_ context.Context, _ usecase.RelayInput) (usecase.RelayOutput, error) {
	return usecase.RelayOutput{}, s.err
}

func newTestHandler(t *testing.T, p *stubProvider) (*Handler, *bytes.Buffer) {
	t.Helper()
	svc, err := usecase.NewRelayService(p, "gemini-2.5-flash")
	require.NoError(t, err)
	var logs bytes.Buffer
	h, err := NewHandler(svc, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, err)
	return h, &logs
}

func postChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)
	return rec
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func logLines(logs *bytes.Buffer) int {
	return strings.Count(logs.String(), "\n")
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestChat_MissingMessage(t *testing.T) {
	bodies := []string{
		`{}`, `{"message":""}`, `{"message":null}`, `{"other":"field"}`, `null`,
		`{"message":false}`, `{"message":0}`, `{"message":0.0}`, `{"message":[]}`, `{"message":{}}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			p := &stubProvider{answer: "unused"}
			h, logs := newTestHandler(t, p)

			rec := postChat(t, h, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			require.JSONEq(t, `{"error":"No message provided"}`, rec.Body.String())
			require.Zero(t, p.calls)
			require.Zero(t, logLines(logs))
		})
	}
}

func TestChat_InvalidBody(t *testing.T) {
	for _, body := range []string{`not-json`, ``, `[1,2]`, `{"message":42}`, `{"message":true}`, `{"message":["hi"]}`, `{"message":{"text":"hi"}}`} {
		t.Run(body, func(t *testing.T) {
			p := &stubProvider{answer: "unused"}
			h, _ := newTestHandler(t, p)

			rec := postChat(t, h, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.JSONEq(t, `{"error":"Invalid JSON body"}`, rec.Body.String())
			require.Zero(t, p.calls)
		})
	}
}

func TestChat_BodyTooLarge(t *testing.T) {
	p := &stubProvider{answer: "unused"}
	h, _ := newTestHandler(t, p)

	rec := postChat(t, h, `{"message":"`+strings.Repeat("a", maxBodyBytes)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, p.calls)
}

func TestChat_HappyPath(t *testing.T) {
	p := &stubProvider{answer: "Disable password auth; use key-based auth; restrict via firewall."}
	h, logs := newTestHandler(t, p)

	rec := postChat(t, h, `{"message":"How do I harden SSH?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"response":"Disable password auth; use key-based auth; restrict via firewall."}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(correlationHeader))

	require.Equal(t, 1, p.calls)
	require.Len(t, p.messages, 2)
	require.Equal(t, domain.RoleSystem, p.messages[0].Role)
	require.Contains(t, p.messages[0].Content, "ETERNYX AI Security Assistant")
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "How do I harden SSH?"}, p.messages[1])
	require.Zero(t, logLines(logs))
}

func TestChat_ProviderFailure(t *testing.T) {
	p := &stubProvider{err: errors.New("timed out")}
	h, logs := newTestHandler(t, p)

	rec := postChat(t, h, `{"message":"ping"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"timed out"}`, rec.Body.String())
	require.Equal(t, 1, p.calls)
	require.Equal(t, 1, logLines(logs))
	require.Contains(t, logs.String(), "timed out")
}

func TestChat_UnexpectedErrorIsInternal(t *testing.T) {
	var logs bytes.Buffer
	h, err := NewHandler(&stubRelayer{err: errors.New("boom")}, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, err)

	rec := postChat(t, h, `{"message":"ping"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
	require.Equal(t, 1, logLines(&logs))
}

func TestChat_EchoesCorrelationID(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{answer: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"ping"}`))
	req.Header.Set("x-correlation-id", "corr-123")
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)
	require.Equal(t, "corr-123", rec.Header().Get(correlationHeader))
}

func TestChat_WrongMethod(t *testing.T) {
	p := &stubProvider{answer: "unused"}
	h, _ := newTestHandler(t, p)

	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Zero(t, p.calls)
}

func TestCORS_Preflight(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{answer: "unused"})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)

	require.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORS_SimpleRequest(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{answer: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"ping"}`))
	req.Header.Set("Origin", "https://other.example")
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// ---------------------------------------------------------------------------
// API Gateway
// ---------------------------------------------------------------------------

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func TestHandleAPIGateway_HappyPath(t *testing.T) {
	p := &stubProvider{answer: "hello"}
	h, _ := newTestHandler(t, p)

	resp, err := h.HandleAPIGateway(context.Background(), makeEvent(`{"message":"hi"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello", parseBody[chatResponse](t, resp.Body).Response)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.NotEmpty(t, resp.Headers[correlationHeader])
}

func TestHandleAPIGateway_Base64Body(t *testing.T) {
	p := &stubProvider{answer: "hello"}
	h, _ := newTestHandler(t, p)

	event := makeEvent(base64.StdEncoding.EncodeToString([]byte(`{"message":"hi"}`)))
	event.IsBase64Encoded = true
	resp, err := h.HandleAPIGateway(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	event.Body = "%%%"
	resp, err = h.HandleAPIGateway(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleAPIGateway_MapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{name: "empty object", body: `{}`, status: http.StatusBadRequest, msg: "No message provided"},
		{name: "empty message", body: `{"message":""}`, status: http.StatusBadRequest, msg: "No message provided"},
		{name: "falsy message", body: `{"message":false}`, status: http.StatusBadRequest, msg: "No message provided"},
		{name: "non-string message", body: `{"message":7}`, status: http.StatusBadRequest, msg: "Invalid JSON body"},
		{name: "invalid json", body: `not-json`, status: http.StatusBadRequest, msg: "Invalid JSON body"},
		{name: "provider failure", body: `{"message":"ping"}`, err: errors.New("timed out"), status: http.StatusInternalServerError, msg: "timed out"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler(t, &stubProvider{err: tc.err})

			resp, err := h.HandleAPIGateway(context.Background(), makeEvent(tc.body))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.msg, parseBody[errorResponse](t, resp.Body).Error)
		})
	}
}

func TestHandleAPIGateway_Preflight(t *testing.T) {
	p := &stubProvider{}
	h, _ := newTestHandler(t, p)

	event := makeEvent("")
	event.HTTPMethod = http.MethodOptions
	resp, err := h.HandleAPIGateway(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Contains(t, resp.Headers["Access-Control-Allow-Methods"], http.MethodPost)
	require.Empty(t, resp.Body)
	require.Zero(t, p.calls)
}

func TestHandleAPIGateway_HealthAndMethod(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	event := makeEvent("")
	event.HTTPMethod = http.MethodGet
	event.Path = "/health"
	resp, err := h.HandleAPIGateway(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	event.HTTPMethod = http.MethodDelete
	event.Path = "/chat"
	resp, err = h.HandleAPIGateway(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleAPIGateway_UnknownPath(t *testing.T) {
	p := &stubProvider{answer: "unused"}
	h, _ := newTestHandler(t, p)

	for _, path := range []string{"/", "/other", "/chat/extra", "/chatty"} {
		event := makeEvent(`{"message":"ping"}`)
		event.Path = path
		resp, err := h.HandleAPIGateway(context.Background(), event)
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, "path=%q", path)
	}
	require.Zero(t, p.calls)

	event := makeEvent(`{"message":"ping"}`)
	event.Path = "/prod/chat"
	resp, err := h.HandleAPIGateway(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleAPIGateway_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{answer: "ok"})

	event := makeEvent(`{"message":"ping"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.HandleAPIGateway(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers[correlationHeader])
}

func TestHandleAPIGateway_GeneratesCorrelationID(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "fixed-id" }
	t.Cleanup(func() { newUUID = orig })

	h, _ := newTestHandler(t, &stubProvider{answer: "ok"})
	resp, err := h.HandleAPIGateway(context.Background(), makeEvent(`{"message":"ping"}`))
	require.NoError(t, err)
	require.Equal(t, "fixed-id", resp.Headers[correlationHeader])
}
