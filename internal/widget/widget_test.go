package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwidget/internal/clock"
	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/resolver"
	"github.com/chatwidget/internal/storage/memory"
	"github.com/chatwidget/internal/transport"
)

func ptr[T any](v T) *T { return &v }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func TestMountSendDestroy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"companyName":"Acme"}`))
	}))
	defer srv.Close()

	res := resolver.New(memory.New())
	rec := &recorder{}
	w, err := Mount(context.Background(), Options{WidgetID: "w1", APIBaseURL: srv.URL, InlineConfig: &model.ConfigPatch{AgentName: ptr("Sam")}},
		Deps{Resolver: res, Clock: clock.NewManual(time.Unix(0, 0)), OnEvent: rec.add, DisableSimulation: false})
	if err != nil {
		t.Fatal(err)
	}

	fetched := rec.ofType(EventConfigFetched)
	if len(fetched) != 1 || fetched[0].Config.CompanyName != "Acme" || fetched[0].WidgetID != "w1" {
		t.Fatalf("config fetched events = %+v", fetched)
	}
	if w.Config().AgentName != "Sam" {
		t.Fatalf("inline config lost: %+v", w.Config())
	}

	w.Open()
	if _, err := w.Send("hello"); err != nil {
		t.Fatal(err)
	}
	sent := rec.ofType(EventMessageSent)
	if len(sent) != 1 || sent[0].Message.Text != "hello" {
		t.Fatalf("message sent events = %+v", sent)
	}
	w.Wait() // the REST post to srv has no reply, the zero-latency canned reply follows

	msgs := w.Snapshot().Messages
	if len(msgs) != 3 || !transport.IsCanned(msgs[2].Text) {
		t.Fatalf("messages = %+v", msgs)
	}

	w.Destroy()
	w.Destroy()
	if _, err := w.UpdateConfig(context.Background(), &model.ConfigPatch{}); err != ErrDestroyed {
		t.Fatalf("UpdateConfig after Destroy: %v", err)
	}
	before := res.Fetches()
	_, _ = res.Resolve(context.Background(), resolver.Options{WidgetID: "w1", RemoteBaseURL: srv.URL})
	if res.Fetches() != before+1 {
		t.Fatal("Destroy did not clear the cached config")
	}
}

func TestMountRequiresWidgetID(t *testing.T) {
	if _, err := Mount(context.Background(), Options{}, Deps{Resolver: resolver.New(memory.New())}); err != ErrMissingWidgetID {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateConfigReachesEngine(t *testing.T) {
	res := resolver.New(memory.New())
	w, err := Mount(context.Background(), Options{WidgetID: "w1"}, Deps{Resolver: res, Clock: clock.NewManual(time.Unix(0, 0))})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Destroy()

	cfg, err := w.UpdateConfig(context.Background(), &model.ConfigPatch{WelcomeMessage: ptr("Welcome to Acme"), RequireUserInfo: ptr(true)})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.RequireUserInfo || w.Config().WelcomeMessage != "Welcome to Acme" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if w.Snapshot().Phase != engine.PhaseGated {
		t.Fatal("gate not applied")
	}
	if errs := w.SubmitUserInfo(model.UserInfo{Name: "Ann", Email: "ann@example.com"}); errs != nil {
		t.Fatalf("errs = %v", errs)
	}
	if got := w.Snapshot().Messages[0].Text; got != "Welcome to Acme" {
		t.Fatalf("welcome = %q", got)
	}

	cached, _ := res.Resolve(context.Background(), resolver.Options{WidgetID: "w1"})
	if cached.WelcomeMessage != "Welcome to Acme" {
		t.Fatal("update not written to the resolver cache")
	}
}

type flakyStore struct {
	*memory.Client
	setErr error
}

func (s *flakyStore) Set(ctx context.Context, id string, cfg model.ChatConfig) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Client.Set(ctx, id, cfg)
}

func TestUpdateConfigReportsCacheFailure(t *testing.T) {
	store := &flakyStore{Client: memory.New()}
	w, err := Mount(context.Background(), Options{WidgetID: "w1"}, Deps{Resolver: resolver.New(store), Clock: clock.NewManual(time.Unix(0, 0))})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Destroy()

	down := errors.New("store down")
	store.setErr = down
	cfg, err := w.UpdateConfig(context.Background(), &model.ConfigPatch{CompanyName: ptr("Acme")})
	if !errors.Is(err, down) {
		t.Fatalf("err = %v", err)
	}
	if cfg.CompanyName != "Acme" || w.Config().CompanyName != "Acme" {
		t.Fatalf("engine config = %+v", w.Config())
	}
	if _, err := w.ReplaceConfig(context.Background(), cfg); !errors.Is(err, down) {
		t.Fatalf("replace err = %v", err)
	}
}

func TestReplaceConfigDropsOldValues(t *testing.T) {
	res := resolver.New(memory.New())
	inline := &model.ConfigPatch{
		CompanyLogo:       ptr("https://x/logo.png"),
		CustomAgentConfig: &model.CustomAgentConfigPatch{Headers: map[string]string{"X-Key": "a"}},
	}
	w, err := Mount(context.Background(), Options{WidgetID: "w1", InlineConfig: inline}, Deps{Resolver: res, Clock: clock.NewManual(time.Unix(0, 0))})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Destroy()

	next := w.Config()
	next.CompanyLogo = ""
	next.CustomAgentConfig.Headers = map[string]string{"X-Other": "b"}
	if _, err := w.ReplaceConfig(context.Background(), next); err != nil {
		t.Fatal(err)
	}
	got := w.Config()
	if got.CompanyLogo != "" || len(got.CustomAgentConfig.Headers) != 1 || got.CustomAgentConfig.Headers["X-Other"] != "b" {
		t.Fatalf("config = %+v", got)
	}
	cached, _ := res.Resolve(context.Background(), resolver.Options{WidgetID: "w1"})
	if cached.CompanyLogo != "" || cached.CustomAgentConfig.Headers["X-Key"] != "" {
		t.Fatalf("cache = %+v", cached.CustomAgentConfig)
	}

	w.Destroy()
	if _, err := w.ReplaceConfig(context.Background(), next); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("err = %v", err)
	}
}

func TestLiveSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	closed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		defer close(closed)
		for {
			var f transport.OutboundFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			conn.WriteJSON(transport.InboundFrame{Type: transport.FrameMessage, ID: "agent-1", Message: "Agent here"})
		}
	}))
	defer srv.Close()

	changes := make(chan engine.Snapshot, 32)
	w, err := Mount(context.Background(), Options{WidgetID: "w1", APIBaseURL: srv.URL, SellerID: "s1"}, Deps{
		Resolver: resolver.New(memory.New()),
		Clock:    clock.NewManual(time.Unix(0, 0)),
		OnChange: func(s engine.Snapshot) {
			select {
			case changes <- s:
			default:
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	w.Open()

	// the dial is asynchronous; wait until a send goes over the socket
	deadline := time.After(3 * time.Second)
	for {
		w.mu.Lock()
		live := w.sock != nil
		w.mu.Unlock()
		if live {
			break
		}
		select {
		case <-deadline:
			t.Fatal("socket never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if _, err := w.Send("hi"); err != nil {
		t.Fatal(err)
	}

	for {
		select {
		case s := <-changes:
			if m, ok := s.Message("agent-1"); ok && m.Text == "Agent here" {
				w.Destroy()
				select {
				case <-closed:
				case <-time.After(3 * time.Second):
					t.Fatal("Destroy left the socket open")
				}
				w.Wait()
				return
			}
		case <-time.After(3 * time.Second):
			t.Fatal("inbound agent message never reached the engine")
		}
	}
}
