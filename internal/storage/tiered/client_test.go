package tiered

import (
	"context"
	"errors"
	"testing"

	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/storage/memory"
)

type countingStore struct {
	*memory.Client
	gets   int
	setErr error
}

func (s *countingStore) Get(ctx context.Context, id string) (*model.ChatConfig, error) {
	s.gets++
	return s.Client.Get(ctx, id)
}

func (s *countingStore) Set(ctx context.Context, id string, cfg model.ChatConfig) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.Client.Set(ctx, id, cfg)
}

func TestClientReadsThroughOnce(t *testing.T) {
	ctx := context.Background()
	durable := &countingStore{Client: memory.New()}
	_ = durable.Client.Set(ctx, "w1", model.ChatConfig{CompanyName: "Acme"})

	c := New(durable)
	for i := 0; i < 3; i++ {
		got, err := c.Get(ctx, "w1")
		if err != nil || got == nil || got.CompanyName != "Acme" {
			t.Fatalf("get %d: %+v %v", i, got, err)
		}
	}
	if durable.gets != 1 {
		t.Fatalf("durable gets = %d, want 1", durable.gets)
	}

	if err := c.Delete(ctx, "w1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Get(ctx, "w1"); got != nil {
		t.Fatalf("deleted config still visible: %+v", got)
	}
	if durable.gets != 2 {
		t.Fatalf("durable gets after delete = %d, want 2", durable.gets)
	}
}

func TestClientFailedSetDoesNotCache(t *testing.T) {
	ctx := context.Background()
	durable := &countingStore{Client: memory.New(), setErr: errors.New("down")}
	c := New(durable)

	if err := c.Set(ctx, "w1", model.ChatConfig{CompanyName: "Acme"}); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := c.Get(ctx, "w1"); got != nil {
		t.Fatal("failed write is visible through the memory tier")
	}
}
