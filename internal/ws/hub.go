package ws

import (
	"context"
	"sync"
	"time"

	"github.com/chatwidget/internal/logger"
)

// Controller applies client commands to a preview session.
type Controller interface {
	HandleCommand(ctx context.Context, sessionID string, msg IncomingMessage) error
}

// Hub fans preview session events out to every connected subscriber of that session.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	ctrl       Controller
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(ctrl Controller, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 1000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		ctrl:       ctrl,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// SetController is for wiring when the controller itself publishes to the hub.
func (h *Hub) SetController(ctrl Controller) {
	h.mu.Lock()
	h.ctrl = ctrl
	h.mu.Unlock()
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	all := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// network I/O outside the lock
	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting session=%s", h.maxConns, c.sessionID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.sessionID]; !ok {
		h.clients[c.sessionID] = make(map[*Client]struct{})
	}
	h.clients[c.sessionID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.sessionID)
	}
	h.mu.Unlock()

	c.Close()
}

// HandleMessage passes a client command to the controller and reports failures back to that client.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.HandleMessage", time.Now())()
	h.mu.RLock()
	ctrl := h.ctrl
	h.mu.RUnlock()
	if ctrl == nil {
		c.Enqueue(OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "commands not supported"}})
		return
	}
	if err := ctrl.HandleCommand(ctx, c.sessionID, msg); err != nil {
		c.Enqueue(OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: err.Error()}})
	}
}

// Publish sends msg to every subscriber of the session.
func (h *Hub) Publish(sessionID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients := h.clients[sessionID]
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Enqueue(msg)
	}
}

// Subscribers is the number of live connections of the session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
