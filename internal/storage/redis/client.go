package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "widget_config:"

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func key(widgetID string) string { return keyPrefix + widgetID }

// Get returns (nil, nil) on a miss. A value that no longer decodes is treated as a miss
// and logged; the next Set overwrites it.
func (c *Client) Get(ctx context.Context, widgetID string) (*model.ChatConfig, error) {
	defer logger.DeferLogDuration("redis.Get", time.Now())()
	raw, err := c.cli.Get(ctx, key(widgetID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis.Get: %w", err)
	}
	var cfg model.ChatConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		logger.Warnf("redis: drop undecodable %s: %v", key(widgetID), err)
		return nil, nil
	}
	return &cfg, nil
}

func (c *Client) Set(ctx context.Context, widgetID string, cfg model.ChatConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("redis.Set: %w", err)
	}
	if err := c.cli.Set(ctx, key(widgetID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis.Set: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, widgetID string) error {
	return c.cli.Del(ctx, key(widgetID)).Err()
}

// Clear removes every widget_config:* key. SCAN keeps other tenants of the DB untouched.
func (c *Client) Clear(ctx context.Context) error {
	iter := c.cli.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis.Clear: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.cli.Del(ctx, keys...).Err()
}

// ListIDs scans widget_config:* keys and returns up to limit ids in lexical order.
func (c *Client) ListIDs(ctx context.Context, limit int) ([]string, error) {
	iter := c.cli.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis.ListIDs: %w", err)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
