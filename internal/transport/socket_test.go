package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwidget/internal/clock"
)

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base, want string
		wantErr    bool
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws?sellerId=s1&widgetId=w1", false},
		{"https://api.example.com/v1/", "wss://api.example.com/v1/ws?sellerId=s1&widgetId=w1", false},
		{"ftp://example.com", "", true},
	}
	for _, tt := range tests {
		got, err := SocketURL(tt.base, "s1", "w1")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("SocketURL(%q) = %q, %v", tt.base, got, err)
		}
	}
}

// agentServer answers every outbound frame with an inbound "re: <message>" frame.
func agentServer(t *testing.T, frames chan<- OutboundFrame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("widgetId") != "w1" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()
		for {
			var f OutboundFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
			if f.Message == "bye" {
				return
			}
			if err := conn.WriteJSON(InboundFrame{Type: FrameMessage, ID: "a1", Message: "re: " + f.Message}); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSocketRoundTrip(t *testing.T) {
	frames := make(chan OutboundFrame, 4)
	srv := agentServer(t, frames)
	wsURL, err := SocketURL(srv.URL, "s1", "w1")
	if err != nil {
		t.Fatal(err)
	}

	inbound := make(chan InboundFrame, 4)
	closed := make(chan struct{})
	s, err := DialSocket(context.Background(), wsURL, SocketOptions{
		OnMessage: func(f InboundFrame) { inbound <- f },
		OnClose:   func() { close(closed) },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	clk := clock.NewManual(epoch)
	c := NewChain(clk, nil, nil)
	c.SetChannel(s)

	r := c.Send(context.Background(), "hello", SendContext{WidgetID: "w1", SellerID: "s1"})
	if r != (Result{Delivered: true}) {
		t.Fatalf("result = %+v", r)
	}
	select {
	case f := <-frames:
		if f.Type != FrameMessage || f.Message != "hello" || f.SellerID != "s1" || f.WidgetID != "w1" {
			t.Fatalf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server got no frame")
	}
	select {
	case f := <-inbound:
		if f.Message != "re: hello" || f.ID != "a1" {
			t.Fatalf("inbound = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound frame")
	}

	// server hangs up: the socket must stop being live and the chain falls through
	if err := s.Push(OutboundFrame{Type: FrameMessage, Message: "bye"}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called after server hangup")
	}
	if s.Live() {
		t.Fatal("socket still live")
	}
	if err := s.Push(OutboundFrame{Type: FrameMessage, Message: "late"}); err != ErrSocketClosed {
		t.Fatalf("push after close = %v", err)
	}
	if r := c.Send(context.Background(), "again", SendContext{WidgetID: "w1"}); r.Delivered {
		t.Fatalf("dead socket reported delivery: %+v", r)
	}
	s.Wait()
}

func TestDialSocketFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := DialSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", SocketOptions{})
	if err == nil {
		t.Fatal("expected dial error")
	}
}
