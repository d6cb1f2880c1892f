package memory

import (
	"context"
	"testing"

	"github.com/chatwidget/internal/model"
)

func TestClient(t *testing.T) {
	ctx := context.Background()
	c := New()

	got, err := c.Get(ctx, "w1")
	if got != nil || err != nil {
		t.Fatalf("miss = %v, %v", got, err)
	}

	cfg := model.ChatConfig{CompanyName: "Acme", CustomAgentConfig: model.CustomAgentConfig{Headers: map[string]string{"X": "1"}}}
	if err := c.Set(ctx, "w1", cfg); err != nil {
		t.Fatal(err)
	}
	cfg.CustomAgentConfig.Headers["X"] = "changed"

	got, _ = c.Get(ctx, "w1")
	if got == nil || got.CompanyName != "Acme" || got.CustomAgentConfig.Headers["X"] != "1" {
		t.Fatalf("stored config aliased caller's map: %+v", got)
	}
	got.CustomAgentConfig.Headers["X"] = "mutated"
	again, _ := c.Get(ctx, "w1")
	if again.CustomAgentConfig.Headers["X"] != "1" {
		t.Fatal("Get result aliases the stored map")
	}

	_ = c.Set(ctx, "w2", cfg)
	_ = c.Delete(ctx, "w1")
	if got, _ := c.Get(ctx, "w1"); got != nil {
		t.Fatal("Delete kept entry")
	}
	_ = c.Clear(ctx)
	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d", c.Len())
	}
}

func TestClientListIDs(t *testing.T) {
	ctx := context.Background()
	c := New()
	for _, id := range []string{"w2", "w3", "w1"} {
		_ = c.Set(ctx, id, model.ChatConfig{})
	}
	for limit, want := range map[int]int{2: 2, 0: 3, -1: 3, 10: 3} {
		ids, err := c.ListIDs(ctx, limit)
		if err != nil || len(ids) != want || ids[0] != "w1" {
			t.Fatalf("limit %d = %v, %v", limit, ids, err)
		}
	}
}
