package clock

import (
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	var got []string
	c.AfterFunc(1000*time.Millisecond, func() { got = append(got, "seen") })
	c.AfterFunc(500*time.Millisecond, func() { got = append(got, "delivered") })
	stopped := c.AfterFunc(700*time.Millisecond, func() { got = append(got, "stopped") })
	if !stopped.Stop() {
		t.Fatal("Stop on pending timer returned false")
	}

	c.Advance(499 * time.Millisecond)
	if len(got) != 0 {
		t.Fatalf("fired early: %v", got)
	}
	c.Advance(time.Second)
	if len(got) != 2 || got[0] != "delivered" || got[1] != "seen" {
		t.Fatalf("order = %v", got)
	}
	if stopped.Stop() {
		t.Fatal("second Stop returned true")
	}
	if c.Pending() != 0 {
		t.Fatalf("pending = %d", c.Pending())
	}
}

func TestManualChainedTimers(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	fired := 0
	c.AfterFunc(time.Second, func() {
		fired++
		c.AfterFunc(time.Second, func() { fired++ })
	})
	c.Advance(2 * time.Second)
	if fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
	if want := time.Unix(2, 0); !c.Now().Equal(want) {
		t.Fatalf("now = %v", c.Now())
	}
}

func TestManualAfterWithBlockUntil(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	done := make(chan time.Time)
	go func() {
		done <- <-c.After(1500 * time.Millisecond)
	}()
	c.BlockUntil(1)
	c.Advance(2 * time.Second)
	select {
	case at := <-done:
		if !at.Equal(time.Unix(0, 0).Add(1500 * time.Millisecond)) {
			t.Fatalf("fired at %v", at)
		}
	case <-time.After(time.Second):
		t.Fatal("After channel never fired")
	}
}
