// Package engine is the per-widget conversation state machine: the user-info gate,
// the message thread, delivery statuses, typing indicator and inactivity disconnect.
package engine

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatwidget/internal/clock"
	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/transport"
	"github.com/chatwidget/internal/widgetconfig"
)

const (
	WelcomeMessageID = "welcome"

	defaultDeliveredAfter = 500 * time.Millisecond
	defaultSeenAfter      = 1000 * time.Millisecond
)

var (
	ErrClosed          = errors.New("engine: closed")
	ErrEmptyMessage    = errors.New("engine: empty message")
	ErrCannotReconnect = errors.New("engine: reconnect not allowed")
	// ErrNotAccepting covers the gate, a collapsed widget and a disconnected session.
	ErrNotAccepting = errors.New("engine: not accepting messages")
)

type Phase string

const (
	PhaseGated        Phase = "gated"
	PhaseOpen         Phase = "open"
	PhaseDisconnected Phase = "disconnected"
)

type Options struct {
	Clock     clock.Clock
	Transport transport.Strategy
	// Send carries the widget id, API base URL and seller id; UserInfo is filled by the engine.
	Send transport.SendContext

	DeliveredAfter time.Duration
	SeenAfter      time.Duration

	NewID func() string

	// OnChange receives a snapshot after every state change. Calls may come from timer and
	// transport goroutines; Snapshot.Version orders them.
	OnChange func(Snapshot)
	// OnMessageSent fires once per accepted user message.
	OnMessageSent func(model.ChatMessage)
	// OnDisconnect runs after an inactivity disconnect; the widget closes its live channel here.
	OnDisconnect func()
	// OnReconnect runs after a successful Reconnect.
	OnReconnect func()
}

type timerHandle struct {
	t clock.Timer
}

type Engine struct {
	opts Options
	clk  clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	cfg             model.ChatConfig
	phase           Phase
	visible         bool
	promptDismissed bool
	messages        []model.ChatMessage
	userInfo        *model.UserInfo
	pendingSends    int
	version         uint64
	closed          bool
	timers          map[*timerHandle]struct{}
	inactivity      *timerHandle
}

// New starts in PhaseGated when cfg.RequireUserInfo, otherwise directly in PhaseOpen with
// the welcome message. The widget starts collapsed.
func New(cfg model.ChatConfig, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.DeliveredAfter <= 0 {
		opts.DeliveredAfter = defaultDeliveredAfter
	}
	if opts.SeenAfter <= 0 {
		opts.SeenAfter = defaultSeenAfter
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:   opts,
		clk:    opts.Clock,
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg.Clone(),
		phase:  PhaseGated,
		timers: make(map[*timerHandle]struct{}),
	}
	e.mu.Lock()
	if !cfg.RequireUserInfo {
		e.enterOpenLocked()
	}
	e.version++
	e.mu.Unlock()
	return e
}

// enterOpenLocked resets the thread to the welcome message (plus the outside-hours notice
// when business hours say closed) and arms the inactivity timer.
func (e *Engine) enterOpenLocked() {
	now := e.clk.Now()
	e.phase = PhaseOpen
	e.messages = []model.ChatMessage{{
		ID:        WelcomeMessageID,
		Text:      e.cfg.WelcomeMessage,
		Timestamp: now,
		Status:    model.MessageStatusDelivered,
	}}
	if !widgetconfig.IsOpen(e.cfg.BusinessHours, now) {
		e.appendAgentLocked("", e.cfg.BusinessHours.OutsideHoursMessage)
	}
	e.armInactivityLocked()
}

func (e *Engine) appendAgentLocked(id, text string) model.ChatMessage {
	if id == "" {
		id = e.opts.NewID()
	}
	m := model.ChatMessage{
		ID:        id,
		Text:      text,
		Timestamp: e.clk.Now(),
		Status:    model.MessageStatusDelivered,
	}
	e.messages = append(e.messages, m)
	return m
}

func (e *Engine) schedule(d time.Duration, fn func()) *timerHandle {
	h := &timerHandle{}
	h.t = e.clk.AfterFunc(d, func() {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		delete(e.timers, h)
		e.mu.Unlock()
		fn()
	})
	e.timers[h] = struct{}{}
	return h
}

func (e *Engine) stopLocked(h *timerHandle) {
	if h == nil {
		return
	}
	h.t.Stop()
	delete(e.timers, h)
}

func (e *Engine) armInactivityLocked() {
	e.stopLocked(e.inactivity)
	e.inactivity = nil
	ds := e.cfg.DisconnectSettings
	if !ds.Enabled || e.phase != PhaseOpen {
		return
	}
	minutes := ds.InactivityTimeoutMinutes
	if minutes < widgetconfig.MinInactivityTimeoutMinutes {
		minutes = widgetconfig.MinInactivityTimeoutMinutes
	}
	e.inactivity = e.schedule(time.Duration(minutes)*time.Minute, e.disconnect)
}

func (e *Engine) disconnect() {
	e.mu.Lock()
	if e.closed || e.phase != PhaseOpen {
		e.mu.Unlock()
		return
	}
	e.inactivity = nil
	e.appendAgentLocked("", e.cfg.DisconnectSettings.DisconnectMessage)
	e.phase = PhaseDisconnected
	snap := e.commitLocked()
	e.mu.Unlock()

	logger.Infof("engine: widget=%s disconnected after inactivity", e.opts.Send.WidgetID)
	if e.opts.OnDisconnect != nil {
		e.opts.OnDisconnect()
	}
	e.notify(snap)
}

func (e *Engine) commitLocked() Snapshot {
	e.version++
	return e.snapshotLocked()
}

func (e *Engine) notify(s Snapshot) {
	if e.opts.OnChange != nil {
		e.opts.OnChange(s)
	}
}

// SubmitUserInfo validates info against the required fields. On success the thread restarts
// with the welcome message and the engine is Open. Outside the gate it is a no-op returning nil.
func (e *Engine) SubmitUserInfo(info model.UserInfo) FieldErrors {
	e.mu.Lock()
	if e.closed || e.phase != PhaseGated {
		e.mu.Unlock()
		return nil
	}
	info = info.Trimmed()
	if errs := ValidateUserInfo(e.cfg.RequiredFields, info); len(errs) > 0 {
		e.mu.Unlock()
		return errs
	}
	e.userInfo = &info
	e.enterOpenLocked()
	snap := e.commitLocked()
	e.mu.Unlock()
	e.notify(snap)
	return nil
}

// SendUserMessage appends a user message and hands it to the transport. Empty text, the gate,
// a collapsed widget and a disconnected session reject the call without changing state.
func (e *Engine) SendUserMessage(text string) (model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return model.ChatMessage{}, ErrClosed
	}
	if text == "" {
		e.mu.Unlock()
		return model.ChatMessage{}, ErrEmptyMessage
	}
	if e.phase != PhaseOpen || !e.visible {
		e.mu.Unlock()
		return model.ChatMessage{}, ErrNotAccepting
	}

	m := model.ChatMessage{
		ID:        e.opts.NewID(),
		Text:      text,
		IsUser:    true,
		Timestamp: e.clk.Now(),
		Status:    model.MessageStatusSending,
	}
	e.messages = append(e.messages, m)
	id := m.ID
	e.schedule(e.opts.DeliveredAfter, func() { e.advance(id, model.MessageStatusDelivered) })
	e.schedule(e.opts.SeenAfter, func() { e.advance(id, model.MessageStatusSeen) })
	e.pendingSends++
	e.armInactivityLocked()

	sc := e.opts.Send
	if e.userInfo != nil {
		info := *e.userInfo
		sc.UserInfo = &info
	}
	if ca := e.cfg.CustomAgentConfig; e.cfg.AgentType == model.AgentTypeCustom && ca.WebhookURL != "" {
		ca.Headers = maps.Clone(ca.Headers)
		sc.Agent = &ca
	}
	snap := e.commitLocked()

	if e.opts.Transport != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.resolve(e.opts.Transport.Send(e.ctx, text, sc))
		}()
	} else {
		e.pendingSends--
		e.appendAgentLocked("", e.cfg.FallbackMessage)
		snap = e.commitLocked()
	}
	e.mu.Unlock()

	if e.opts.OnMessageSent != nil {
		e.opts.OnMessageSent(m)
	}
	e.notify(snap)
	return m, nil
}

// resolve applies a transport result. A result arriving after Destroy is dropped.
func (e *Engine) resolve(res transport.Result) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.pendingSends--
	if e.phase == PhaseOpen {
		switch {
		case !res.Delivered:
			e.appendAgentLocked("", e.cfg.FallbackMessage)
		case res.ReplyText != "":
			e.appendAgentLocked("", res.ReplyText)
		}
	}
	snap := e.commitLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// advance moves a user message forward along sending -> delivered -> seen. A transition
// that is not strictly forward is ignored.
func (e *Engine) advance(id string, to model.MessageStatus) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	idx := -1
	for i := len(e.messages) - 1; i >= 0; i-- {
		if e.messages[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || !e.messages[idx].IsUser || e.messages[idx].Status.Rank() >= to.Rank() {
		e.mu.Unlock()
		return
	}
	e.messages[idx].Status = to
	snap := e.commitLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// ReceiveAgentMessage appends an inbound agent message (socket frames). A non-empty id
// already in the thread is a duplicate and ignored.
func (e *Engine) ReceiveAgentMessage(id, text string) bool {
	text = strings.TrimSpace(text)
	e.mu.Lock()
	if e.closed || text == "" || e.phase != PhaseOpen {
		e.mu.Unlock()
		return false
	}
	if id != "" {
		for _, m := range e.messages {
			if m.ID == id {
				e.mu.Unlock()
				return false
			}
		}
	}
	e.appendAgentLocked(id, text)
	snap := e.commitLocked()
	e.mu.Unlock()
	e.notify(snap)
	return true
}

// SetVisible expands (true) or collapses the widget. State is kept either way.
func (e *Engine) SetVisible(v bool) {
	e.mu.Lock()
	if e.closed || e.visible == v {
		e.mu.Unlock()
		return
	}
	e.visible = v
	snap := e.commitLocked()
	e.mu.Unlock()
	e.notify(snap)
}

func (e *Engine) DismissPrompt() {
	e.mu.Lock()
	if e.closed || e.promptDismissed {
		e.mu.Unlock()
		return
	}
	e.promptDismissed = true
	snap := e.commitLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// Reconnect resumes a disconnected session when the config offers the reconnect button.
func (e *Engine) Reconnect() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.phase != PhaseDisconnected || !e.cfg.DisconnectSettings.ShowReconnectButton {
		e.mu.Unlock()
		return ErrCannotReconnect
	}
	e.phase = PhaseOpen
	e.armInactivityLocked()
	snap := e.commitLocked()
	e.mu.Unlock()

	if e.opts.OnReconnect != nil {
		e.opts.OnReconnect()
	}
	e.notify(snap)
	return nil
}

// SetConfig replaces the config wholesale. The welcome text follows welcomeMessage, the gate
// follows requireUserInfo while no user info has been given, and the inactivity timer is re-armed.
func (e *Engine) SetConfig(cfg model.ChatConfig) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cfg = cfg.Clone()
	for i := range e.messages {
		if e.messages[i].ID == WelcomeMessageID {
			e.messages[i].Text = cfg.WelcomeMessage
		}
	}
	switch {
	case e.phase == PhaseGated && !cfg.RequireUserInfo:
		e.enterOpenLocked()
	case e.phase == PhaseOpen && cfg.RequireUserInfo && e.userInfo == nil:
		e.phase = PhaseGated
		e.messages = nil
		e.armInactivityLocked()
	default:
		e.armInactivityLocked()
	}
	snap := e.commitLocked()
	e.mu.Unlock()
	e.notify(snap)
}

func (e *Engine) Config() model.ChatConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// Destroy stops every timer and cancels in-flight sends. Later callbacks and calls are no-ops.
// It does not wait for transport goroutines; see Wait.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for h := range e.timers {
		h.t.Stop()
	}
	e.timers = map[*timerHandle]struct{}{}
	e.inactivity = nil
	e.mu.Unlock()
	e.cancel()
}

// Wait blocks until in-flight transport calls have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
