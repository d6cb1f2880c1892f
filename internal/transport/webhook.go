package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
)

var ErrNoWebhook = errors.New("transport: no custom agent webhook")

type webhookPayload struct {
	Message   string          `json:"message"`
	WidgetID  string          `json:"widgetId"`
	UserInfo  *model.UserInfo `json:"userInfo"`
	Timestamp time.Time       `json:"timestamp"`
}

// Webhook posts user messages to a custom agent (agentType=custom) with its configured headers.
type Webhook struct {
	client  *http.Client
	timeout time.Duration
}

// NewWebhook: a nil client means http.DefaultClient; timeout <= 0 means the caller's context only.
func NewWebhook(client *http.Client, timeout time.Duration) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{client: client, timeout: timeout}
}

// Post expects {"reply": "..."}; a 2xx without a reply is ErrNoReply.
func (h *Webhook) Post(ctx context.Context, text string, sc SendContext, now time.Time) (string, error) {
	if sc.Agent == nil || sc.Agent.WebhookURL == "" {
		return "", ErrNoWebhook
	}
	defer logger.DeferLogDuration("transport.webhook.Post", time.Now())()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	body, err := json.Marshal(webhookPayload{Message: text, WidgetID: sc.WidgetID, UserInfo: sc.UserInfo, Timestamp: now})
	if err != nil {
		return "", fmt.Errorf("webhook.Post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.Agent.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("webhook.Post: %w", err)
	}
	for k, v := range sc.Agent.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook.Post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("webhook.Post: status %d", resp.StatusCode)
	}
	var out replyPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBody)).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("webhook.Post: decode: %w", err)
	}
	if out.Reply == "" {
		return "", ErrNoReply
	}
	return out.Reply, nil
}
