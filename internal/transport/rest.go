package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
)

var ErrNoReply = errors.New("transport: response has no reply")

const maxReplyBody = 64 << 10

type messagePayload struct {
	Message   string          `json:"message"`
	UserInfo  *model.UserInfo `json:"userInfo"`
	Timestamp time.Time       `json:"timestamp"`
	SellerID  string          `json:"sellerId,omitempty"`
	WidgetID  string          `json:"widgetId,omitempty"`
}

type replyPayload struct {
	Reply string `json:"reply"`
}

type REST struct {
	client  *http.Client
	timeout time.Duration
}

// NewREST: a nil client means http.DefaultClient; timeout <= 0 means the caller's context only.
func NewREST(client *http.Client, timeout time.Duration) *REST {
	if client == nil {
		client = http.DefaultClient
	}
	return &REST{client: client, timeout: timeout}
}

// MessageURL is POST {base}/api/chat/{widgetId}/message, or {base}/sendmessage when a seller is set.
func MessageURL(baseURL string, sc SendContext) string {
	base := strings.TrimRight(baseURL, "/")
	if sc.SellerID != "" {
		return base + "/sendmessage"
	}
	return base + "/api/chat/" + url.PathEscape(sc.WidgetID) + "/message"
}

// Post sends the message and returns the reply. A 2xx without a reply is ErrNoReply
// so the chain falls through to the next step.
func (r *REST) Post(ctx context.Context, text string, sc SendContext, now time.Time) (string, error) {
	defer logger.DeferLogDuration("transport.rest.Post", time.Now())()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	p := messagePayload{Message: text, UserInfo: sc.UserInfo, Timestamp: now}
	if sc.SellerID != "" {
		p.SellerID, p.WidgetID = sc.SellerID, sc.WidgetID
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("rest.Post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, MessageURL(sc.APIBaseURL, sc), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("rest.Post: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("rest.Post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("rest.Post: status %d", resp.StatusCode)
	}
	var out replyPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBody)).Decode(&out); err != nil {
		return "", fmt.Errorf("rest.Post: decode: %w", err)
	}
	if out.Reply == "" {
		return "", ErrNoReply
	}
	return out.Reply, nil
}
