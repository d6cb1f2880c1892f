// Package transport delivers a user message through the first available channel: live
// socket, custom agent webhook, REST, and finally a simulated agent reply. Failures never
// reach the caller as errors; the worst outcome is Result{Delivered: false}.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/chatwidget/internal/clock"
	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
)

type SendContext struct {
	UserInfo   *model.UserInfo
	WidgetID   string
	APIBaseURL string
	// SellerID selects the /sendmessage REST variant and is echoed on socket frames.
	SellerID string
	// Agent is set when the widget routes to a custom agent webhook.
	Agent *model.CustomAgentConfig
}

// Result of one send attempt chain. An empty ReplyText with Delivered=true means a reply,
// if any, arrives later through the socket's inbound callback.
type Result struct {
	Delivered bool
	ReplyText string
}

type Strategy interface {
	Send(ctx context.Context, text string, sc SendContext) Result
}

// Channel is a live bidirectional connection (see Socket).
type Channel interface {
	Live() bool
	Push(frame OutboundFrame) error
}

// Chain tries each configured step once, in order. Any step may be nil.
type Chain struct {
	clk     clock.Clock
	webhook *Webhook
	rest    *REST
	sim     *Simulated

	mu   sync.RWMutex
	live Channel
}

func NewChain(clk clock.Clock, rest *REST, sim *Simulated) *Chain {
	return &Chain{clk: clk, rest: rest, sim: sim}
}

// UseWebhook adds the custom agent step. Call before the first Send.
func (c *Chain) UseWebhook(h *Webhook) *Chain {
	c.webhook = h
	return c
}

// SetChannel installs (or with nil removes) the live channel used as the first step.
func (c *Chain) SetChannel(ch Channel) {
	c.mu.Lock()
	c.live = ch
	c.mu.Unlock()
}

func (c *Chain) channel() Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live
}

func (c *Chain) Send(ctx context.Context, text string, sc SendContext) Result {
	defer logger.DeferLogDuration("transport.Send", time.Now())()

	if ch := c.channel(); ch != nil && ch.Live() {
		err := ch.Push(OutboundFrame{
			Type:      FrameMessage,
			Message:   text,
			SellerID:  sc.SellerID,
			WidgetID:  sc.WidgetID,
			UserInfo:  sc.UserInfo,
			Timestamp: c.clk.Now(),
		})
		if err == nil {
			return Result{Delivered: true}
		}
		logger.Warnf("transport: socket push failed, falling back: %v", err)
	}

	if c.webhook != nil && sc.Agent != nil {
		reply, err := c.webhook.Post(ctx, text, sc, c.clk.Now())
		if err == nil {
			return Result{Delivered: true, ReplyText: reply}
		}
		logger.Warnf("transport: agent webhook failed, falling back: %v", err)
	}

	if c.rest != nil && sc.APIBaseURL != "" {
		reply, err := c.rest.Post(ctx, text, sc, c.clk.Now())
		if err == nil {
			return Result{Delivered: true, ReplyText: reply}
		}
		logger.Warnf("transport: REST send failed, falling back: %v", err)
	}

	if c.sim != nil {
		if reply, ok := c.sim.Reply(ctx); ok {
			return Result{Delivered: true, ReplyText: reply}
		}
	}
	return Result{}
}
