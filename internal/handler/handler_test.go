package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/middleware"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/service"
	"github.com/chatwidget/internal/storage/memory"
	"github.com/chatwidget/internal/ws"
)

type testServer struct {
	*httptest.Server
	hub *ws.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	configs := service.NewConfigService(memory.New())
	hub := ws.NewHub(nil, 100)
	previews := service.NewPreviewService(configs, hub, service.PreviewOptions{MaxSessions: 10})
	hub.SetController(previews)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	r := chi.NewRouter()
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	Routes(r,
		NewConfigHandler(configs, "https://cdn.example.com/chat-widget.js", ""),
		NewPreviewHandler(previews),
		NewEventsHandler(hub, previews, "*", ws.ClientOptions{}),
		100)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		previews.Shutdown()
		cancel()
		<-done
		srv.Close()
	})
	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestConfigRoutes(t *testing.T) {
	s := newTestServer(t)

	var cfg model.ChatConfig
	if code := s.do(t, "GET", "/api/widgets/w1/config", nil, &cfg); code != http.StatusOK || cfg.CompanyName != "Your Company" {
		t.Fatalf("GET default: %d %+v", code, cfg)
	}
	if code := s.do(t, "PUT", "/api/widgets/w1/config", `{"companyName":"Acme","disconnectSettings":{"inactivityTimeoutMinutes":0}}`, &cfg); code != http.StatusOK {
		t.Fatalf("PUT: %d", code)
	}
	if cfg.CompanyName != "Acme" || cfg.DisconnectSettings.InactivityTimeoutMinutes != 1 {
		t.Fatalf("PUT result %+v", cfg)
	}
	if code := s.do(t, "PUT", "/api/widgets/w1/config", `{"companyName":`, nil); code != http.StatusBadRequest {
		t.Fatalf("malformed PUT: %d", code)
	}

	var rf requiredFieldResponse
	if code := s.do(t, "POST", "/api/widgets/w1/required-fields", map[string]any{"field": "name", "checked": false}, &rf); code != http.StatusOK || rf.Applied {
		t.Fatalf("refused toggle: %d %+v", code, rf)
	}
	if code := s.do(t, "POST", "/api/widgets/w1/required-fields", map[string]any{"field": "phone", "checked": true}, &rf); code != http.StatusOK || !rf.Applied || !rf.Config.RequireUserInfo {
		t.Fatalf("applied toggle: %d %+v", code, rf)
	}
	if code := s.do(t, "POST", "/api/widgets/w1/required-fields", map[string]any{"field": "fax", "checked": true}, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", code)
	}

	var list listResponse
	if code := s.do(t, "GET", "/api/widgets?limit=10", nil, &list); code != http.StatusOK || len(list.WidgetIDs) != 1 || list.WidgetIDs[0] != "w1" {
		t.Fatalf("list: %d %+v", code, list)
	}

	resp, err := http.Get(s.URL + "/api/widgets/w1/embed")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") ||
		!strings.Contains(string(body), `src="https://cdn.example.com/chat-widget.js" data-widget-id="w1"`) ||
		!strings.Contains(string(body), `"companyName": "Acme"`) {
		t.Fatalf("embed: %s\n%s", resp.Header.Get("Content-Type"), body)
	}

	if code := s.do(t, "DELETE", "/api/widgets/w1/config", nil, nil); code != http.StatusNoContent {
		t.Fatalf("DELETE: %d", code)
	}
	s.do(t, "GET", "/api/widgets/w1/config", nil, &cfg)
	if cfg.CompanyName != "Your Company" {
		t.Fatal("DELETE kept the saved config")
	}
}

func TestPreviewSessionRoutes(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "PUT", "/api/widgets/w1/config", `{"requireUserInfo":true,"companyName":"Acme"}`, nil)

	var view struct {
		ID     string           `json:"id"`
		Config model.ChatConfig `json:"config"`
		State  engine.Snapshot  `json:"state"`
	}
	if code := s.do(t, "POST", "/api/preview/sessions", map[string]any{"widgetId": "w1"}, &view); code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}
	if view.Config.CompanyName != "Acme" || view.State.Phase != engine.PhaseGated {
		t.Fatalf("view = %+v", view)
	}
	base := "/api/preview/sessions/" + view.ID

	var fe fieldErrorsResponse
	if code := s.do(t, "POST", base+"/user-info", model.UserInfo{Name: "Ann", Email: "nope"}, &fe); code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid user info: %d", code)
	}
	if _, ok := fe.Fields[model.FieldEmail]; !ok {
		t.Fatalf("field errors = %+v", fe)
	}
	var snap engine.Snapshot
	if code := s.do(t, "POST", base+"/user-info", model.UserInfo{Name: "Ann", Email: "ann@example.com"}, &snap); code != http.StatusOK || snap.Phase != engine.PhaseOpen {
		t.Fatalf("user info: %d %+v", code, snap)
	}

	if code := s.do(t, "POST", base+"/messages", sendRequest{Text: "hi"}, nil); code != http.StatusConflict {
		t.Fatalf("send while collapsed: %d", code)
	}
	s.do(t, "POST", base+"/open", nil, &snap)
	if !snap.Visible {
		t.Fatal("open did not show the window")
	}
	var msg model.ChatMessage
	if code := s.do(t, "POST", base+"/messages", sendRequest{Text: "hi"}, &msg); code != http.StatusAccepted || msg.Text != "hi" || msg.Status != model.MessageStatusSending {
		t.Fatalf("send: %d %+v", code, msg)
	}
	if code := s.do(t, "POST", base+"/messages", sendRequest{Text: "   "}, nil); code != http.StatusBadRequest {
		t.Fatalf("empty send: %d", code)
	}
	if code := s.do(t, "POST", base+"/reconnect", nil, nil); code != http.StatusConflict {
		t.Fatalf("reconnect while open: %d", code)
	}
	s.do(t, "POST", base+"/dismiss-prompt", nil, &snap)
	if !snap.PromptDismissed {
		t.Fatal("prompt not dismissed")
	}

	if code := s.do(t, "DELETE", base, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if code := s.do(t, "GET", base, nil, nil); code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", code)
	}
}

func TestPreviewSessionUsesRemoteConfigEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "PUT", "/api/widgets/w1/config", `{"agentName":"Remote Rita"}`, nil)

	var view struct {
		ID     string           `json:"id"`
		Linked bool             `json:"linked"`
		Config model.ChatConfig `json:"config"`
	}
	code := s.do(t, "POST", "/api/preview/sessions", map[string]any{
		"widgetId":   "w1",
		"apiBaseUrl": s.URL,
		"config":     map[string]any{"companyName": "Inline Inc"},
	}, &view)
	if code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}
	if view.Linked || view.Config.AgentName != "Remote Rita" || view.Config.CompanyName != "Inline Inc" {
		t.Fatalf("view = %+v", view)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, want ws.EventType) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Type    ws.EventType    `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
}

func TestSessionEventsStream(t *testing.T) {
	s := newTestServer(t)
	var view struct {
		ID string `json:"id"`
	}
	s.do(t, "POST", "/api/preview/sessions", map[string]any{"widgetId": "w1"}, &view)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/preview/sessions/" + view.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var snap engine.Snapshot
	if err := json.Unmarshal(readUntil(t, conn, ws.EventSnapshot), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Visible || len(snap.Messages) != 1 {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	// the hub registers asynchronously
	deadline := time.Now().Add(5 * time.Second)
	for s.hub.Subscribers(view.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := conn.WriteJSON(ws.IncomingMessage{Type: "teleport"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, ws.EventError)

	if err := conn.WriteJSON(ws.IncomingMessage{Type: ws.CommandOpen}); err != nil {
		t.Fatal(err)
	}
	for {
		if err := json.Unmarshal(readUntil(t, conn, ws.EventSnapshot), &snap); err != nil {
			t.Fatal(err)
		}
		if snap.Visible {
			break
		}
	}

	if code := s.do(t, "DELETE", "/api/preview/sessions/"+view.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	readUntil(t, conn, ws.EventSessionClosed)
}

func TestEventsUnknownSession(t *testing.T) {
	s := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/preview/sessions/nope/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial to unknown session succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("resp = %+v", resp)
	}
}
