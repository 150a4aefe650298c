package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/linegpt/internal/agent"
	"github.com/soyeahso/linegpt/internal/audit"
	"github.com/soyeahso/linegpt/internal/domain"
	"github.com/soyeahso/linegpt/internal/line"
	"github.com/soyeahso/linegpt/internal/llm"
	"github.com/soyeahso/linegpt/internal/logging"
	"github.com/soyeahso/linegpt/internal/memory"
	"github.com/soyeahso/linegpt/internal/metrics"
	"github.com/soyeahso/linegpt/internal/routing"
)

const testSecret = "channel-secret"

const textDelivery = `{
  "destination": "Ubot",
  "events": [{
    "type": "message",
    "timestamp": 1700000000000,
    "webhookEventId": "01HEV",
    "replyToken": "reply-1",
    "source": {"type": "user", "userId": "U42"},
    "message": {"id": "m1", "type": "text", "text": "hello"},
    "deliveryContext": {"isRedelivery": false}
  }]
}`

type recordingHandler struct {
	mu     sync.Mutex
	calls  int
	events []domain.InboundEvent
	panics bool
}

func (h *recordingHandler) HandleEvents(_ context.Context, events []domain.InboundEvent) []routing.Outcome {
	if h.panics {
		panic("handler blew up")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.events = append(h.events, events...)
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func testServer(t *testing.T, h EventHandler) (*Server, *metrics.Metrics, *httptest.Server) {
	t.Helper()
	m := metrics.New()
	srv := New(Options{}, line.NewVerifier(testSecret), h, m, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, m, ts
}

func postCallback(t *testing.T, url, body, signature string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+CallbackPath, strings.NewReader(body))
	require.NoError(t, err)
	if signature != "" {
		req.Header.Set(line.SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func sign(body string) string {
	return line.NewVerifier(testSecret).Sign([]byte(body))
}

func TestHealthEndpoint(t *testing.T) {
	_, _, ts := testServer(t, &recordingHandler{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, ts := testServer(t, &recordingHandler{})

	warm, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	warm.Body.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "linegpt_http_requests_total")
}

func TestNotFound(t *testing.T) {
	_, _, ts := testServer(t, &recordingHandler{})

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "/nope", body["path"])
}

func TestCallback_Valid(t *testing.T) {
	h := &recordingHandler{}
	_, _, ts := testServer(t, h)

	resp, body := postCallback(t, ts.URL, textDelivery, sign(textDelivery))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
	require.Equal(t, 1, h.calls)
	require.Len(t, h.events, 1)
	assert.Equal(t, "hello", h.events[0].Text)
	assert.Equal(t, "reply-1", h.events[0].ReplyToken)
	assert.Equal(t, "U42", h.events[0].Source.UserID)
}

func TestCallback_VerificationPing(t *testing.T) {
	h := &recordingHandler{}
	_, _, ts := testServer(t, h)

	ping := `{"destination":"Ubot","events":[]}`
	resp, body := postCallback(t, ts.URL, ping, sign(ping))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
	assert.Empty(t, h.events)
}

func TestCallback_BadSignature(t *testing.T) {
	h := &recordingHandler{}
	_, m, ts := testServer(t, h)

	resp, _ := postCallback(t, ts.URL, textDelivery, line.NewVerifier("other-secret").Sign([]byte(textDelivery)))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, h.calls, "nothing downstream may run")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRejected.WithLabelValues("signature")))
}

func TestCallback_TamperedBody(t *testing.T) {
	h := &recordingHandler{}
	_, _, ts := testServer(t, h)

	sig := sign(textDelivery)
	tampered := strings.Replace(textDelivery, "hello", "HELLO", 1)
	resp, _ := postCallback(t, ts.URL, tampered, sig)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, h.calls)
}

func TestCallback_MissingSignature(t *testing.T) {
	h := &recordingHandler{}
	_, _, ts := testServer(t, h)

	resp, _ := postCallback(t, ts.URL, textDelivery, "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, h.calls)
}

func TestCallback_SignedButNotJSON(t *testing.T) {
	h := &recordingHandler{}
	_, m, ts := testServer(t, h)

	body := "not json"
	resp, got := postCallback(t, ts.URL, body, sign(body))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", got)
	assert.Empty(t, h.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRejected.WithLabelValues("json")))
}

func TestCallback_BodyTooLarge(t *testing.T) {
	h := &recordingHandler{}
	srv, m, _ := testServer(t, h)

	body := strings.Repeat("a", MaxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, CallbackPath, strings.NewReader(body))
	req.Header.Set(line.SignatureHeader, sign(body))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Zero(t, h.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRejected.WithLabelValues("body")))
}

func TestCallback_WrongMethod(t *testing.T) {
	_, _, ts := testServer(t, &recordingHandler{})

	resp, err := http.Get(ts.URL + CallbackPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCallback_PanicIsRecovered(t *testing.T) {
	_, _, ts := testServer(t, &recordingHandler{panics: true})

	resp, _ := postCallback(t, ts.URL, textDelivery, sign(textDelivery))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The server keeps serving.
	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	srv := New(Options{Addr: "127.0.0.1:0"}, line.NewVerifier(testSecret), &recordingHandler{}, nil, testLogger())
	assert.Empty(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Without metrics the endpoint is not mounted.
	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartListenError(t *testing.T) {
	srv := New(Options{Addr: "256.0.0.1:bad"}, line.NewVerifier(testSecret), &recordingHandler{}, nil, testLogger())
	err := srv.Start(context.Background())
	assert.Error(t, err)
}

// TestWebhookEndToEnd drives a delivery through the real pipeline and
// replies to a fake Messaging API.
func TestWebhookEndToEnd(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []map[string]any
	)
	lineAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		replies = append(replies, body)
		mu.Unlock()
		w.Write([]byte("{}"))
	}))
	defer lineAPI.Close()

	engine := &llm.MockEngine{RunFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{Output: "echo " + req.Input}, nil
	}}
	window, err := memory.NewWindow(memory.NewInProcessStore(), "", 10)
	require.NoError(t, err)

	var auditBuf strings.Builder
	router := routing.NewRouter(routing.Deps{
		Agent:   agent.New(engine, nil, agent.Config{}, testLogger()),
		Memory:  window,
		Replier: line.NewClient("access-token", lineAPI.URL),
		Audit:   audit.NewLogSink(&auditBuf),
		Log:     testLogger(),
	})
	_, _, ts := testServer(t, router)

	resp, body := postCallback(t, ts.URL, textDelivery, sign(textDelivery))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, replies, 1)
	assert.Equal(t, "reply-1", replies[0]["replyToken"])
	msgs := replies[0]["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "echo hello", msgs[0].(map[string]any)["text"])

	assert.Contains(t, auditBuf.String(), `"user_id":"U42"`)
	assert.Contains(t, auditBuf.String(), `"response":"echo hello"`)
}
