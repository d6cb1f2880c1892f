package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/storage"
	"github.com/chatwidget/internal/widget"
	"github.com/chatwidget/internal/widgetconfig"
)

var (
	ErrEmptyWidgetID = errors.New("widget id required")
	ErrUnknownField  = errors.New("unknown required field")
)

// ConfigService keeps the builder's saved configs. A saved config is what the remote
// config endpoint serves; a widget id that was never saved serves the defaults.
type ConfigService struct {
	store storage.ConfigStore
	// onSaved is called after every committed change, e.g. to refresh live previews.
	onSaved func(ctx context.Context, widgetID string, cfg model.ChatConfig)
}

func NewConfigService(store storage.ConfigStore) *ConfigService {
	return &ConfigService{store: store}
}

// OnSaved registers the change hook. Not safe to call once the service is serving.
func (s *ConfigService) OnSaved(fn func(ctx context.Context, widgetID string, cfg model.ChatConfig)) {
	s.onSaved = fn
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyWidgetID
	}
	return id, nil
}

// Get returns the saved config merged over the defaults.
func (s *ConfigService) Get(ctx context.Context, widgetID string) (model.ChatConfig, error) {
	defer logger.DeferLogDuration("configService.Get", time.Now())()
	id, err := normalizeID(widgetID)
	if err != nil {
		return model.ChatConfig{}, err
	}
	saved, err := s.store.Get(ctx, id)
	if err != nil {
		return model.ChatConfig{}, fmt.Errorf("configService.Get: %w", err)
	}
	if saved == nil {
		return widgetconfig.Default(), nil
	}
	return widgetconfig.Normalize(saved.Clone()), nil
}

// Save deep-merges patch into the saved config and stores the normalized result.
func (s *ConfigService) Save(ctx context.Context, widgetID string, patch *model.ConfigPatch) (model.ChatConfig, error) {
	cur, err := s.Get(ctx, widgetID)
	if err != nil {
		return model.ChatConfig{}, err
	}
	next := widgetconfig.Merge(cur, patch)
	if err := s.commit(ctx, strings.TrimSpace(widgetID), next); err != nil {
		return model.ChatConfig{}, err
	}
	return next, nil
}

// SetRequiredField runs the builder toggle. A refused change leaves the saved config as is
// and reports applied=false.
func (s *ConfigService) SetRequiredField(ctx context.Context, widgetID string, field model.RequiredField, checked bool) (model.ChatConfig, bool, error) {
	if !field.Valid() {
		return model.ChatConfig{}, false, ErrUnknownField
	}
	cur, err := s.Get(ctx, widgetID)
	if err != nil {
		return model.ChatConfig{}, false, err
	}
	next, applied := widgetconfig.ApplyRequiredFieldChange(cur, field, checked)
	if !applied {
		return cur, false, nil
	}
	if err := s.commit(ctx, strings.TrimSpace(widgetID), next); err != nil {
		return model.ChatConfig{}, false, err
	}
	return next, true, nil
}

func (s *ConfigService) commit(ctx context.Context, id string, cfg model.ChatConfig) error {
	if err := s.store.Set(ctx, id, cfg); err != nil {
		return fmt.Errorf("configService.commit: %w", err)
	}
	if s.onSaved != nil {
		s.onSaved(ctx, id, cfg)
	}
	return nil
}

// Reset drops the saved config; the widget id serves the defaults again.
func (s *ConfigService) Reset(ctx context.Context, widgetID string) error {
	id, err := normalizeID(widgetID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("configService.Reset: %w", err)
	}
	if s.onSaved != nil {
		s.onSaved(ctx, id, widgetconfig.Default())
	}
	return nil
}

// List returns saved widget ids when the backend can enumerate them.
func (s *ConfigService) List(ctx context.Context, limit int) ([]string, error) {
	l, ok := s.store.(storage.IDLister)
	if !ok {
		return nil, storage.ErrListUnsupported
	}
	ids, err := l.ListIDs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("configService.List: %w", err)
	}
	return ids, nil
}

// Embed renders the "get embed code" snippet for the saved config.
func (s *ConfigService) Embed(ctx context.Context, widgetID string, eo widget.EmbedOptions) (string, error) {
	cfg, err := s.Get(ctx, widgetID)
	if err != nil {
		return "", err
	}
	eo.WidgetID = strings.TrimSpace(widgetID)
	return widget.EmbedSnippet(cfg, eo)
}
