package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4096
	sendBufSize           = 64
)

var (
	ErrSocketClosed = errors.New("transport: socket closed")
	ErrSocketBusy   = errors.New("transport: socket send buffer full")
)

type FrameType string

const FrameMessage FrameType = "message"

// OutboundFrame is {type:'message', message, sellerId, widgetId, userInfo, timestamp}.
type OutboundFrame struct {
	Type      FrameType       `json:"type"`
	Message   string          `json:"message"`
	SellerID  string          `json:"sellerId"`
	WidgetID  string          `json:"widgetId"`
	UserInfo  *model.UserInfo `json:"userInfo"`
	Timestamp time.Time       `json:"timestamp"`
}

// InboundFrame is {type:'message', id?, message}.
type InboundFrame struct {
	Type    FrameType `json:"type"`
	ID      string    `json:"id,omitempty"`
	Message string    `json:"message"`
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

type SocketOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	Dialer         *websocket.Dialer
	// OnMessage receives every inbound message frame, on the read goroutine.
	OnMessage func(InboundFrame)
	// OnClose runs once after the connection is gone, whoever closed it.
	OnClose func()
}

func (o *SocketOptions) withDefaults() {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Socket is the widget side of ws://{host}/ws?sellerId=&widgetId=.
// Lifecycle: DialSocket -> [readPump, writePump] -> Close -> Wait.
type Socket struct {
	conn *websocket.Conn
	opts SocketOptions
	send chan OutboundFrame

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// SocketURL maps the API base URL onto the socket endpoint (http -> ws, https -> wss).
func SocketURL(apiBaseURL, sellerID, widgetID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("socket url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("socket url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := url.Values{}
	q.Set("sellerId", sellerID)
	q.Set("widgetId", widgetID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DialSocket connects and starts the pumps. ctx bounds the dial only.
func DialSocket(ctx context.Context, wsURL string, opts SocketOptions) (*Socket, error) {
	opts.withDefaults()
	conn, resp, err := opts.Dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("socket dial: %w", err)
	}
	s := &Socket{
		conn: conn,
		opts: opts,
		send: make(chan OutboundFrame, sendBufSize),
		done: make(chan struct{}),
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(2)
	go s.writePump(pumpCtx)
	go s.readPump(pumpCtx)
	return s, nil
}

func (s *Socket) Live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Push queues a frame without blocking.
func (s *Socket) Push(frame OutboundFrame) error {
	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}
	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return ErrSocketClosed
	default:
		return ErrSocketBusy
	}
}

// Close is safe to call many times from any goroutine.
func (s *Socket) Close() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
		s.conn.Close()
		if s.opts.OnClose != nil {
			go s.opts.OnClose()
		}
	})
}

// Wait blocks until both pumps have exited.
func (s *Socket) Wait() {
	s.wg.Wait()
}

func (s *Socket) readPump(ctx context.Context) {
	defer s.wg.Done()
	defer s.Close()

	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait)); err != nil {
		logger.Errorf("socket set read deadline: %v", err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("socket read: %v", err)
			}
			return
		}
		var f InboundFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			logger.Warnf("socket: undecodable frame: %v", err)
			continue
		}
		if f.Type != FrameMessage || f.Message == "" {
			logger.Debugf("socket: ignore frame type=%q", f.Type)
			continue
		}
		if s.opts.OnMessage != nil {
			s.opts.OnMessage(f)
		}
	}
}

func (s *Socket) writePump(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.opts.WriteWait))
			return
		case f := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)); err != nil {
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			if err := json.NewEncoder(buf).Encode(f); err != nil {
				bufPool.Put(buf)
				logger.Errorf("socket marshal: %v", err)
				continue
			}
			data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
			err := s.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if err != nil {
				logger.Warnf("socket write: %v", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
