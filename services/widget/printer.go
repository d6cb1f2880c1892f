package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/widget"
)

// printer renders state changes as lines: new messages once, status changes as they happen.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	seen   map[string]model.MessageStatus
	phase  engine.Phase
	typing bool
}

func (p *printer) event(ev widget.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Type {
	case widget.EventConfigFetched:
		fmt.Fprintf(p.w, "* config: %s / agent %s\n", ev.Config.CompanyName, ev.Config.AgentName)
	case widget.EventMessageSent:
		fmt.Fprintf(p.w, "* sent %s\n", ev.Message.ID)
	}
}

func (p *printer) snapshot(s engine.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen == nil {
		p.seen = make(map[string]model.MessageStatus)
	}
	if s.Phase != p.phase {
		fmt.Fprintf(p.w, "* %s\n", s.Phase)
		p.phase = s.Phase
	}
	for _, m := range s.Messages {
		prev, ok := p.seen[m.ID]
		p.seen[m.ID] = m.Status
		who := "agent"
		if m.IsUser {
			who = "you"
		}
		switch {
		case !ok:
			fmt.Fprintf(p.w, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), who, m.Text)
		case prev != m.Status && m.IsUser:
			fmt.Fprintf(p.w, "  %s %s\n", m.ID, m.Status)
		}
	}
	if s.IsTyping != p.typing {
		if s.IsTyping {
			fmt.Fprintln(p.w, "  agent is typing...")
		}
		p.typing = s.IsTyping
	}
}
