// Package tiered puts the in-process cache in front of a durable ConfigStore, so
// resolves stay local while saved configs survive a restart.
package tiered

import (
	"context"
	"errors"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/storage"
	"github.com/chatwidget/internal/storage/memory"
)

type Client struct {
	mem     *memory.Client
	durable storage.ConfigStore
}

func New(durable storage.ConfigStore) *Client {
	return &Client{mem: memory.New(), durable: durable}
}

func (c *Client) Get(ctx context.Context, widgetID string) (*model.ChatConfig, error) {
	if cfg, _ := c.mem.Get(ctx, widgetID); cfg != nil {
		return cfg, nil
	}
	cfg, err := c.durable.Get(ctx, widgetID)
	if err != nil || cfg == nil {
		return nil, err
	}
	_ = c.mem.Set(ctx, widgetID, *cfg)
	return cfg, nil
}

// Set writes the durable store first; the memory tier only follows a successful write.
func (c *Client) Set(ctx context.Context, widgetID string, cfg model.ChatConfig) error {
	if err := c.durable.Set(ctx, widgetID, cfg); err != nil {
		_ = c.mem.Delete(ctx, widgetID)
		return err
	}
	return c.mem.Set(ctx, widgetID, cfg)
}

func (c *Client) Delete(ctx context.Context, widgetID string) error {
	_ = c.mem.Delete(ctx, widgetID)
	return c.durable.Delete(ctx, widgetID)
}

func (c *Client) Clear(ctx context.Context) error {
	_ = c.mem.Clear(ctx)
	return c.durable.Clear(ctx)
}

// ListIDs asks the durable tier; the memory tier only holds what was read recently.
func (c *Client) ListIDs(ctx context.Context, limit int) ([]string, error) {
	l, ok := c.durable.(storage.IDLister)
	if !ok {
		return nil, storage.ErrListUnsupported
	}
	return l.ListIDs(ctx, limit)
}

func (c *Client) Close() error {
	err := c.durable.Close()
	if memErr := c.mem.Close(); memErr != nil {
		err = errors.Join(err, memErr)
	}
	if err != nil {
		logger.Errorf("tiered: close: %v", err)
	}
	return err
}
