package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/service"
	"github.com/chatwidget/internal/ws"
)

// EventsHandler upgrades GET /api/preview/sessions/{sid}/events to a snapshot stream.
type EventsHandler struct {
	hub            *ws.Hub
	previews       *service.PreviewService
	allowedOrigins string
	clientOpts     ws.ClientOptions
}

// NewEventsHandler: allowedOrigins is the CORS value (comma separated or "*").
func NewEventsHandler(hub *ws.Hub, previews *service.PreviewService, allowedOrigins string, opts ws.ClientOptions) *EventsHandler {
	return &EventsHandler{hub: hub, previews: previews, allowedOrigins: strings.TrimSpace(allowedOrigins), clientOpts: opts}
}

func (h *EventsHandler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == "*" || h.allowedOrigins == "" {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range strings.Split(h.allowedOrigins, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func (h *EventsHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	s, err := h.previews.Get(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !h.checkOrigin(r) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := ws.NewClient(h.hub, conn, s.ID, h.clientOpts)
	client.Start(ctx, cancel)
	client.Enqueue(ws.SnapshotMessage(s.Widget().Snapshot()))
	h.hub.Register(client)
}
