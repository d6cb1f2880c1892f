package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/widgetconfig"
)

func TestParseInfo(t *testing.T) {
	got := parseInfo("name=Ann Lee email=ann@example.com fax=1 phone=+1 555")
	want := model.UserInfo{Name: "Ann Lee", Email: "ann@example.com", Phone: "+1 555"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPrinterReportsChangesOnce(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}
	ts := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	snap := engine.Snapshot{Phase: engine.PhaseOpen, Messages: []model.ChatMessage{
		{ID: "welcome", Text: "Hi", Timestamp: ts},
		{ID: "m1", Text: "hello", IsUser: true, Timestamp: ts, Status: model.MessageStatusSending},
	}, IsTyping: true}
	p.snapshot(snap)
	p.snapshot(snap)
	snap.Messages[1].Status = model.MessageStatusDelivered
	snap.IsTyping = false
	p.snapshot(snap)

	out := buf.String()
	for _, want := range []string{"* open", "[09:30:00] agent: Hi", "[09:30:00] you: hello", "agent is typing...", "m1 delivered"} {
		if strings.Count(out, want) != 1 {
			t.Errorf("%q appears %d times in:\n%s", want, strings.Count(out, want), out)
		}
	}
}

func TestWithStored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	if err := os.WriteFile(path, []byte(`{"companyName":"Saved","agentName":"Old"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	inline, err := widgetconfig.DecodePatch([]byte(`{"agentName":"New"}`))
	if err != nil {
		t.Fatal(err)
	}

	got := widgetconfig.Merge(widgetconfig.Default(), withStored(path, inline))
	if got.CompanyName != "Saved" || got.AgentName != "New" {
		t.Fatalf("stored+inline = %q/%q", got.CompanyName, got.AgentName)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"companyName":`), 0o600)
	got = widgetconfig.Merge(widgetconfig.Default(), withStored(bad, inline))
	if got.CompanyName != widgetconfig.Default().CompanyName || got.AgentName != "New" {
		t.Fatalf("malformed stored = %q/%q", got.CompanyName, got.AgentName)
	}

	if p := withStored(filepath.Join(dir, "missing.json"), inline); p != inline {
		t.Fatal("missing file should keep the inline config")
	}
}

func TestReadLinesStopsOnDone(t *testing.T) {
	lines := make(chan string)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		readLines(strings.NewReader("hello\nworld\n"), lines, done)
		close(finished)
	}()

	if got := <-lines; got != "hello" {
		t.Fatalf("line = %q", got)
	}
	// nobody reads "world" anymore
	close(done)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("reader stayed blocked after done")
	}
	if _, ok := <-lines; ok {
		t.Fatal("lines not closed")
	}
}
