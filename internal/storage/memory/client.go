package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/chatwidget/internal/model"
)

// Client is a map-backed ConfigStore with no TTL; entries live until Delete or Clear.
type Client struct {
	mu      sync.RWMutex
	configs map[string]model.ChatConfig
}

func New() *Client {
	return &Client{configs: make(map[string]model.ChatConfig)}
}

func (c *Client) Close() error { return nil }

func (c *Client) Get(ctx context.Context, widgetID string) (*model.ChatConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.configs[widgetID]
	if !ok {
		return nil, nil
	}
	out := v.Clone()
	return &out, nil
}

func (c *Client) Set(ctx context.Context, widgetID string, cfg model.ChatConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[widgetID] = cfg.Clone()
	return nil
}

func (c *Client) Delete(ctx context.Context, widgetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.configs, widgetID)
	return nil
}

func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = make(map[string]model.ChatConfig)
	return nil
}

// Len is the number of cached widgets.
func (c *Client) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.configs)
}

// ListIDs returns up to limit ids in lexical order; limit <= 0 means all.
func (c *Client) ListIDs(ctx context.Context, limit int) ([]string, error) {
	c.mu.RLock()
	ids := make([]string, 0, len(c.configs))
	for id := range c.configs {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
