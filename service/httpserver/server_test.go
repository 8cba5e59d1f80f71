package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mid "github.com/affanraza84/Chatting-App/middleware"
	midsec "github.com/affanraza84/Chatting-App/middleware/security"
	"github.com/affanraza84/Chatting-App/module/message"
	"github.com/affanraza84/Chatting-App/module/message/model"
	"github.com/affanraza84/Chatting-App/service/chat"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/affanraza84/Chatting-App/tools/security"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	opts   Options
	deps   Deps
	engine *gin.Engine
	auth   *security.JWTAuthenticator
	reg    *chat.Registry
	bc     *chat.Broadcaster
}

func newStack(t *testing.T) *stack {
	t.Helper()
	promReg := prometheus.NewRegistry()
	metrics := chat.NewMetrics(promReg)

	reg := chat.NewRegistry()
	conns := chat.NewConnManager(chat.ManagerConf{})
	bc := chat.NewBroadcaster(reg, conns, chat.BroadcasterConf{PushTimeout: time.Second}, metrics)
	coord := chat.NewCoordinator(message.NewMemoryStore(), reg, nil, chat.CoordinatorConf{}, metrics)

	origins, err := mid.NewOriginPolicy([]string{"http://localhost:5173"}, nil)
	require.NoError(t, err)
	gw := chat.NewGateway(reg, conns, bc, nil, chat.GatewayConf{CheckOrigin: origins.CheckOrigin}, metrics)

	auth := security.NewJWTAuthenticator(security.DefaultOptions([]byte("test-secret")))
	opts := Options{Mode: gin.TestMode, BodyLimit: 1 << 10, SendRate: 100, SendBurst: 100, ShutdownTimeout: time.Second}
	deps := Deps{
		Gateway:     gw,
		Coordinator: coord,
		Auth:        midsec.Middleware(midsec.DefaultOptions(auth)),
		Origins:     origins,
		Gatherer:    promReg,
		Now:         func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	e := NewEngine(opts, deps)

	ctx, cancel := context.WithCancel(context.Background())
	go bc.Run(ctx)
	t.Cleanup(func() {
		cancel()
		bc.Stop()
		conns.CloseAll()
	})
	return &stack{opts: opts, deps: deps, engine: e, auth: auth, reg: reg, bc: bc}
}

func (s *stack) token(t *testing.T, user string) string {
	tok, _, err := s.auth.Issue(user)
	require.NoError(t, err)
	return tok
}

func (s *stack) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, user))
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) errs.Envelope {
	t.Helper()
	var env errs.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	s := newStack(t)
	w := s.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","message":"Server is running","timestamp":"2024-01-02T03:04:05Z"}`, w.Body.String())
}

func TestUnknownAPIRoute(t *testing.T) {
	s := newStack(t)
	w := s.do(t, http.MethodGet, "/api/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	env := envelope(t, w)
	assert.Equal(t, errs.Envelope{Success: false, Message: "API endpoint not found", Error: "NOT_FOUND"}, env)

	w = s.do(t, http.MethodGet, "/elsewhere", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessageRoutesNeedAuth(t *testing.T) {
	s := newStack(t)
	w := s.do(t, http.MethodPost, "/api/message/send/bob", "", `{"text":"hi"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", envelope(t, w).Error)
}

func TestSendAndList(t *testing.T) {
	s := newStack(t)

	w := s.do(t, http.MethodPost, "/api/message/send/bob", "alice", `{"text":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.Equal(t, "alice", sent.SenderID)
	assert.Equal(t, "bob", sent.ReceiverID)

	w = s.do(t, http.MethodGet, "/api/message/alice", "bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, sent.ID, list[0].ID)

	w = s.do(t, http.MethodPost, "/api/message/send/bob", "alice", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", envelope(t, w).Error)
}

func TestBodyLimit(t *testing.T) {
	s := newStack(t)
	big := `{"text":"` + strings.Repeat("x", 2<<10) + `"}`
	w := s.do(t, http.MethodPost, "/api/message/send/bob", "alice", big)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS(t *testing.T) {
	s := newStack(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/message/online", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CORS_ERROR", envelope(t, w).Error)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newStack(t)
	s.do(t, http.MethodPost, "/api/message/send/bob", "alice", `{"text":"x"}`)

	w := s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chat_messages_total")
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, c *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, c.ReadJSON(&f))
		if f.Event == want {
			return f.Data
		}
	}
}

func TestLiveDelivery(t *testing.T) {
	s := newStack(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=bob"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	var online []string
	require.NoError(t, json.Unmarshal(readFrame(t, conn, chat.EventOnlineUsers), &online))
	assert.Equal(t, []string{"bob"}, online)

	w := s.do(t, http.MethodGet, "/api/message/online", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["bob"]`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/message/send/bob", "alice", `{"text":"ping bob"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Message
	require.NoError(t, json.Unmarshal(readFrame(t, conn, chat.EventNewMessage), &got))
	assert.Equal(t, "ping bob", got.Text)
	assert.Equal(t, "alice", got.SenderID)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newStack(t)
	srv := New(s.opts, s.deps)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
