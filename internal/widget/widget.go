// Package widget mounts one chat widget instance: it resolves the config, wires the
// transport chain and live socket to a conversation engine, and tears all of it down on Destroy.
package widget

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/chatwidget/internal/clock"
	"github.com/chatwidget/internal/config"
	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/resolver"
	"github.com/chatwidget/internal/transport"
)

var (
	ErrMissingWidgetID = errors.New("widget: missing widget id")
	ErrDestroyed       = errors.New("widget: destroyed")
)

type EventType string

const (
	EventMessageSent   EventType = "chatWidgetMessageSent"
	EventConfigFetched EventType = "chatWidgetConfigFetched"
)

// Event is what a host page would receive as a custom DOM event.
type Event struct {
	Type     EventType          `json:"type"`
	WidgetID string             `json:"widgetId"`
	Message  *model.ChatMessage `json:"message,omitempty"`
	Config   *model.ChatConfig  `json:"config,omitempty"`
}

// Options come from the host embed surface (see ParseAttributes).
type Options struct {
	WidgetID    string
	APIBaseURL  string
	ContainerID string
	// SellerID enables the live socket channel and the seller REST variant.
	SellerID     string
	InlineConfig *model.ConfigPatch
}

// Container is the id of the host element the widget renders into.
func (o Options) Container() string {
	if o.ContainerID != "" {
		return o.ContainerID
	}
	return "chat-widget-" + o.WidgetID
}

type Deps struct {
	Resolver *resolver.Resolver
	Clock    clock.Clock
	Runtime  config.WidgetConfig
	// HTTPClient is used for the REST send path; nil means http.DefaultClient.
	HTTPClient *http.Client
	Socket     transport.SocketOptions
	Rand       *rand.Rand
	// DisableSimulation drops the canned-reply step, so a failed send shows fallbackMessage.
	DisableSimulation bool

	OnEvent  func(Event)
	OnChange func(engine.Snapshot)
}

type Widget struct {
	opts Options
	deps Deps
	eng  *engine.Engine
	tr   *transport.Chain

	mu        sync.Mutex
	sock      *transport.Socket
	destroyed bool
	dialWg    sync.WaitGroup
}

// Mount resolves the config and starts the widget. On error nothing stays acquired.
func Mount(ctx context.Context, opts Options, deps Deps) (*Widget, error) {
	if opts.WidgetID == "" {
		return nil, ErrMissingWidgetID
	}
	if deps.Resolver == nil {
		return nil, errors.New("widget: nil resolver")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	cfg, err := deps.Resolver.Resolve(ctx, resolver.Options{
		WidgetID:      opts.WidgetID,
		RemoteBaseURL: opts.APIBaseURL,
		InlineConfig:  opts.InlineConfig,
	})
	if err != nil {
		return nil, err
	}

	w := &Widget{opts: opts, deps: deps}

	var sim *transport.Simulated
	if !deps.DisableSimulation {
		sim = transport.NewSimulated(deps.Clock, deps.Runtime.SimulatedLatencyMin, deps.Runtime.SimulatedLatencyMax, deps.Rand)
	}
	w.tr = transport.NewChain(deps.Clock, transport.NewREST(deps.HTTPClient, deps.Runtime.SendTimeout), sim).
		UseWebhook(transport.NewWebhook(deps.HTTPClient, deps.Runtime.SendTimeout))
	w.eng = engine.New(cfg, engine.Options{
		Clock:     deps.Clock,
		Transport: w.tr,
		Send: transport.SendContext{
			WidgetID:   opts.WidgetID,
			APIBaseURL: opts.APIBaseURL,
			SellerID:   opts.SellerID,
		},
		DeliveredAfter: deps.Runtime.DeliveredAfter,
		SeenAfter:      deps.Runtime.SeenAfter,
		OnChange:       deps.OnChange,
		OnMessageSent: func(m model.ChatMessage) {
			w.emit(Event{Type: EventMessageSent, Message: &m})
		},
		OnDisconnect: w.closeSocket,
		OnReconnect:  w.connect,
	})

	w.emit(Event{Type: EventConfigFetched, Config: &cfg})
	w.connect()
	logger.Infof("widget %s mounted in #%s", opts.WidgetID, opts.Container())
	return w, nil
}

func (w *Widget) emit(ev Event) {
	ev.WidgetID = w.opts.WidgetID
	if w.deps.OnEvent != nil {
		w.deps.OnEvent(ev)
	}
}

// connect dials the live socket in the background when a seller is configured.
// Failure only means sends go over REST or the simulated reply.
func (w *Widget) connect() {
	if w.opts.SellerID == "" || w.opts.APIBaseURL == "" {
		return
	}
	wsURL, err := transport.SocketURL(w.opts.APIBaseURL, w.opts.SellerID, w.opts.WidgetID)
	if err != nil {
		logger.Warnf("widget %s: %v", w.opts.WidgetID, err)
		return
	}
	w.mu.Lock()
	if w.destroyed || w.sock != nil {
		w.mu.Unlock()
		return
	}
	w.dialWg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.dialWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := w.deps.Socket
		opts.OnMessage = func(f transport.InboundFrame) {
			w.eng.ReceiveAgentMessage(f.ID, f.Message)
		}
		opts.OnClose = func() {
			w.mu.Lock()
			dead := w.sock != nil && !w.sock.Live()
			if dead {
				w.sock = nil
			}
			w.mu.Unlock()
			if dead {
				w.tr.SetChannel(nil)
			}
		}
		s, err := transport.DialSocket(ctx, wsURL, opts)
		if err != nil {
			logger.Warnf("widget %s: live channel unavailable: %v", w.opts.WidgetID, err)
			return
		}

		w.mu.Lock()
		if w.destroyed || w.sock != nil || !s.Live() {
			w.mu.Unlock()
			s.Close()
			return
		}
		w.sock = s
		w.mu.Unlock()
		w.tr.SetChannel(s)
	}()
}

func (w *Widget) closeSocket() {
	w.mu.Lock()
	s := w.sock
	w.sock = nil
	w.mu.Unlock()
	w.tr.SetChannel(nil)
	if s != nil {
		s.Close()
	}
}

// UpdateConfig merges patch into the widget's cached config and hands the result to the engine.
// The engine always takes the merged config; a returned error means the cache kept the old one.
func (w *Widget) UpdateConfig(ctx context.Context, patch *model.ConfigPatch) (model.ChatConfig, error) {
	if w.isDestroyed() {
		return model.ChatConfig{}, ErrDestroyed
	}
	cfg, err := w.deps.Resolver.UpdateConfig(ctx, w.opts.WidgetID, patch)
	w.eng.SetConfig(cfg)
	if err != nil {
		return cfg, fmt.Errorf("widget.UpdateConfig: %w", err)
	}
	return cfg, nil
}

// ReplaceConfig swaps the whole config, so fields and headers absent from cfg are gone afterwards.
// Error semantics match UpdateConfig.
func (w *Widget) ReplaceConfig(ctx context.Context, cfg model.ChatConfig) (model.ChatConfig, error) {
	if w.isDestroyed() {
		return model.ChatConfig{}, ErrDestroyed
	}
	out, err := w.deps.Resolver.Replace(ctx, w.opts.WidgetID, cfg)
	w.eng.SetConfig(out)
	if err != nil {
		return out, fmt.Errorf("widget.ReplaceConfig: %w", err)
	}
	return out, nil
}

func (w *Widget) Config() model.ChatConfig { return w.eng.Config() }

func (w *Widget) Snapshot() engine.Snapshot { return w.eng.Snapshot() }

func (w *Widget) Open()  { w.eng.SetVisible(true) }
func (w *Widget) Close() { w.eng.SetVisible(false) }

func (w *Widget) SubmitUserInfo(info model.UserInfo) engine.FieldErrors {
	return w.eng.SubmitUserInfo(info)
}

func (w *Widget) Send(text string) (model.ChatMessage, error) {
	return w.eng.SendUserMessage(text)
}

func (w *Widget) DismissPrompt() { w.eng.DismissPrompt() }

func (w *Widget) Reconnect() error { return w.eng.Reconnect() }

func (w *Widget) isDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

// Destroy releases timers, the live socket and the cached config. Safe to call more than once.
func (w *Widget) Destroy() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	w.mu.Unlock()

	if w.eng != nil {
		w.eng.Destroy()
	}
	if w.tr != nil {
		w.closeSocket()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.deps.Resolver.Invalidate(ctx, w.opts.WidgetID)
	logger.Infof("widget %s destroyed", w.opts.WidgetID)
}

// Wait blocks until background work (dials, in-flight sends) has finished after Destroy.
func (w *Widget) Wait() {
	w.dialWg.Wait()
	if w.eng != nil {
		w.eng.Wait()
	}
}
