package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatwidget/internal/clock"
	"github.com/chatwidget/internal/config"
	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/middleware"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/resolver"
	"github.com/chatwidget/internal/storage/memory"
	"github.com/chatwidget/internal/transport"
	"github.com/chatwidget/internal/widget"
	"github.com/chatwidget/internal/widgetconfig"
	"github.com/chatwidget/internal/ws"
)

var (
	ErrSessionNotFound = errors.New("preview session not found")
	ErrTooManySessions = errors.New("too many preview sessions")
	ErrUnknownCommand  = errors.New("unknown command")
)

// Publisher receives session events; *ws.Hub implements it.
type Publisher interface {
	Publish(sessionID string, msg ws.OutgoingMessage)
}

type PreviewOptions struct {
	Runtime     config.WidgetConfig
	MaxSessions int
	Clock       clock.Clock
	HTTPClient  *http.Client
	Socket      transport.SocketOptions
	// NewID defaults to uuid.NewString.
	NewID func() string
}

// Session is one mounted preview widget.
type Session struct {
	ID        string    `json:"id"`
	WidgetID  string    `json:"widgetId"`
	CreatedAt time.Time `json:"createdAt"`
	// Linked sessions follow the saved config of their widget id.
	Linked bool `json:"linked"`

	w *widget.Widget
	// overlay is the request config a linked session keeps on top of every save.
	overlay *model.ConfigPatch
}

type SessionView struct {
	*Session
	Config model.ChatConfig `json:"config"`
	State  engine.Snapshot  `json:"state"`
}

func (s *Session) Widget() *widget.Widget { return s.w }

func (s *Session) View() SessionView {
	return SessionView{Session: s, Config: s.w.Config(), State: s.w.Snapshot()}
}

type CreateSessionRequest struct {
	WidgetID   string          `json:"widgetId"`
	APIBaseURL string          `json:"apiBaseUrl,omitempty"`
	SellerID   string          `json:"sellerId,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// PreviewService mounts widgets server-side so the builder can drive them and watch the
// engine state. Each session gets its own resolver cache.
type PreviewService struct {
	configs *ConfigService
	pub     Publisher
	opts    PreviewOptions

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  int
}

func NewPreviewService(configs *ConfigService, pub Publisher, opts PreviewOptions) *PreviewService {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 100
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	p := &PreviewService{
		configs:  configs,
		pub:      pub,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
	configs.OnSaved(p.refreshLinked)
	return p
}

func (p *PreviewService) publish(sid string, msg ws.OutgoingMessage) {
	if p.pub != nil {
		p.pub.Publish(sid, msg)
	}
}

func (p *PreviewService) reserve() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions)+p.pending >= p.opts.MaxSessions {
		return ErrTooManySessions
	}
	p.pending++
	return nil
}

func (p *PreviewService) release() {
	p.mu.Lock()
	p.pending--
	p.mu.Unlock()
}

// Create mounts a preview widget. Without apiBaseUrl the session is linked: its config is the
// saved config with req.Config on top, and it follows later saves.
func (p *PreviewService) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	defer logger.DeferLogDuration("previewService.Create", time.Now())()
	id, err := normalizeID(req.WidgetID)
	if err != nil {
		return nil, err
	}
	overlay, err := widgetconfig.DecodePatch(req.Config)
	if err != nil {
		return nil, err
	}
	if err := p.reserve(); err != nil {
		return nil, err
	}
	defer p.release()

	s := &Session{
		ID:        p.opts.NewID(),
		WidgetID:  id,
		CreatedAt: p.opts.Clock.Now().UTC(),
		Linked:    req.APIBaseURL == "",
		overlay:   overlay,
	}
	inline := overlay
	if s.Linked {
		saved, err := p.configs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		inline = widgetconfig.PatchFromConfig(widgetconfig.Merge(saved, overlay))
	}

	res := resolver.New(memory.New(),
		resolver.WithHTTPClient(p.opts.HTTPClient),
		resolver.WithFetchTimeout(p.opts.Runtime.ConfigFetchTimeout))
	w, err := widget.Mount(ctx, widget.Options{
		WidgetID:     id,
		APIBaseURL:   strings.TrimRight(req.APIBaseURL, "/"),
		SellerID:     req.SellerID,
		ContainerID:  "preview-" + s.ID,
		InlineConfig: inline,
	}, widget.Deps{
		Resolver:   res,
		Clock:      p.opts.Clock,
		Runtime:    p.opts.Runtime,
		HTTPClient: p.opts.HTTPClient,
		Socket:     p.opts.Socket,
		OnEvent: func(ev widget.Event) {
			p.publish(s.ID, ws.WidgetEventMessage(ev))
		},
		OnChange: func(snap engine.Snapshot) {
			p.publish(s.ID, ws.SnapshotMessage(snap))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("previewService.Create: %w", err)
	}
	s.w = w

	p.mu.Lock()
	p.sessions[s.ID] = s
	p.mu.Unlock()
	logger.Infof("preview session %s created for widget %s", middleware.MaskSessionID(s.ID), id)
	return s, nil
}

func (p *PreviewService) Get(sid string) (*Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the sessions ordered by creation time.
func (p *PreviewService) List() []*Session {
	p.mu.RLock()
	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Delete destroys the session's widget and tells subscribers the session is gone.
func (p *PreviewService) Delete(sid string) error {
	p.mu.Lock()
	s, ok := p.sessions[sid]
	delete(p.sessions, sid)
	p.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.w.Destroy()
	p.publish(sid, ws.OutgoingMessage{Type: ws.EventSessionClosed, Payload: map[string]string{"id": sid}})
	logger.Infof("preview session %s deleted", middleware.MaskSessionID(sid))
	return nil
}

// Shutdown destroys every session and waits for their background work.
func (p *PreviewService) Shutdown() {
	p.mu.Lock()
	all := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		all = append(all, s)
	}
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()

	for _, s := range all {
		s.w.Destroy()
	}
	for _, s := range all {
		s.w.Wait()
	}
}

// refreshLinked hands the saved config wholesale to linked sessions, so cleared fields and
// removed headers disappear there too.
func (p *PreviewService) refreshLinked(ctx context.Context, widgetID string, cfg model.ChatConfig) {
	for _, s := range p.List() {
		if !s.Linked || s.WidgetID != widgetID {
			continue
		}
		if _, err := s.w.ReplaceConfig(ctx, widgetconfig.Merge(cfg, s.overlay)); err != nil {
			logger.Warnf("preview session %s: refresh config: %v", middleware.MaskSessionID(s.ID), err)
		}
	}
}

// HandleCommand applies a command received over the session's events socket.
func (p *PreviewService) HandleCommand(ctx context.Context, sid string, msg ws.IncomingMessage) error {
	s, err := p.Get(sid)
	if err != nil {
		return err
	}
	switch msg.Type {
	case ws.CommandSend:
		_, err = s.w.Send(msg.Text)
		return err
	case ws.CommandOpen:
		s.w.Open()
	case ws.CommandClose:
		s.w.Close()
	case ws.CommandDismissPrompt:
		s.w.DismissPrompt()
	case ws.CommandReconnect:
		return s.w.Reconnect()
	default:
		return ErrUnknownCommand
	}
	return nil
}
