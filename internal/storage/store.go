// Package storage defines where resolved and saved widget configs live.
package storage

import (
	"context"
	"errors"

	"github.com/chatwidget/internal/model"
)

// ConfigStore keeps one ChatConfig per widget id.
// Get returns (nil, nil) on a miss so callers can tell "absent" from a backend failure.
// Implementations: memory.Client (in-process, default resolver cache), redis.Client,
// repository.WidgetConfigRepository (Postgres) and tiered.Client (memory in front of a durable store).
type ConfigStore interface {
	Get(ctx context.Context, widgetID string) (*model.ChatConfig, error)
	Set(ctx context.Context, widgetID string, cfg model.ChatConfig) error
	Delete(ctx context.Context, widgetID string) error
	Clear(ctx context.Context) error
	Close() error
}

// IDLister is implemented by stores that can enumerate saved widget ids.
// A limit <= 0 means no limit.
type IDLister interface {
	ListIDs(ctx context.Context, limit int) ([]string, error)
}

var ErrListUnsupported = errors.New("storage: backend cannot list widget ids")
