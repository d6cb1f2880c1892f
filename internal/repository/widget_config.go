package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
)

// WidgetConfigRepository stores saved widget configs as JSONB. It satisfies storage.ConfigStore.
type WidgetConfigRepository struct {
	pool *pgxpool.Pool
}

func NewWidgetConfigRepository(pool *pgxpool.Pool) *WidgetConfigRepository {
	return &WidgetConfigRepository{pool: pool}
}

// Get returns (nil, nil) for an unknown widget.
func (r *WidgetConfigRepository) Get(ctx context.Context, widgetID string) (*model.ChatConfig, error) {
	defer logger.DeferLogDuration("widgetConfig.Get", time.Now())()
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT config FROM widget_configs WHERE widget_id = $1`, widgetID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("widgetConfigRepo.Get: %w", err)
	}
	var cfg model.ChatConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("widgetConfigRepo.Get: decode: %w", err)
	}
	return &cfg, nil
}

func (r *WidgetConfigRepository) Set(ctx context.Context, widgetID string, cfg model.ChatConfig) error {
	defer logger.DeferLogDuration("widgetConfig.Set", time.Now())()
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("widgetConfigRepo.Set: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO widget_configs (widget_id, config, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (widget_id) DO UPDATE SET
		   config = EXCLUDED.config,
		   updated_at = NOW()`,
		widgetID, raw,
	)
	if err != nil {
		return fmt.Errorf("widgetConfigRepo.Set: %w", err)
	}
	return nil
}

func (r *WidgetConfigRepository) Delete(ctx context.Context, widgetID string) error {
	defer logger.DeferLogDuration("widgetConfig.Delete", time.Now())()
	if _, err := r.pool.Exec(ctx, `DELETE FROM widget_configs WHERE widget_id = $1`, widgetID); err != nil {
		return fmt.Errorf("widgetConfigRepo.Delete: %w", err)
	}
	return nil
}

func (r *WidgetConfigRepository) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM widget_configs`); err != nil {
		return fmt.Errorf("widgetConfigRepo.Clear: %w", err)
	}
	return nil
}

// ListIDs returns saved widget ids, most recently updated first. limit <= 0 returns all.
func (r *WidgetConfigRepository) ListIDs(ctx context.Context, limit int) ([]string, error) {
	defer logger.DeferLogDuration("widgetConfig.ListIDs", time.Now())()
	// LIMIT NULL is no limit
	var max *int
	if limit > 0 {
		max = &limit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT widget_id FROM widget_configs ORDER BY updated_at DESC, widget_id LIMIT $1`, max)
	if err != nil {
		return nil, fmt.Errorf("widgetConfigRepo.ListIDs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("widgetConfigRepo.ListIDs: %w", err)
	}
	return ids, nil
}

// Close is a no-op: the pool belongs to main.
func (r *WidgetConfigRepository) Close() error { return nil }
