package engine

import (
	"regexp"
	"sort"
	"strings"

	"github.com/chatwidget/internal/model"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+$`)

// FieldErrors maps a gate field to the reason it was rejected. Empty means valid.
type FieldErrors map[model.RequiredField]string

func (f FieldErrors) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[model.RequiredField(k)])
	}
	return strings.Join(parts, "; ")
}

// ValidateUserInfo checks the fields marked required: non-empty, and email shaped x@y.
func ValidateUserInfo(req model.RequiredFields, info model.UserInfo) FieldErrors {
	errs := FieldErrors{}
	for _, f := range []model.RequiredField{model.FieldName, model.FieldEmail, model.FieldPhone} {
		if !req.Get(f) {
			continue
		}
		v := strings.TrimSpace(info.Get(f))
		switch {
		case v == "":
			errs[f] = "required"
		case f == model.FieldEmail && !emailRe.MatchString(v):
			errs[f] = "invalid email"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Snapshot is a copy of the visible state.
type Snapshot struct {
	Version         uint64              `json:"version"`
	Phase           Phase               `json:"phase"`
	Visible         bool                `json:"visible"`
	Messages        []model.ChatMessage `json:"messages"`
	IsTyping        bool                `json:"isTyping"`
	UserInfo        *model.UserInfo     `json:"userInfo,omitempty"`
	PromptDismissed bool                `json:"promptDismissed"`
	ShowPrompt      bool                `json:"showPrompt"`
	CanReconnect    bool                `json:"canReconnect"`
}

func (s Snapshot) GateOpen() bool { return s.Phase != PhaseGated }

// Message returns the message with id, if present.
func (s Snapshot) Message(id string) (model.ChatMessage, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.ChatMessage{}, false
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Version:         e.version,
		Phase:           e.phase,
		Visible:         e.visible,
		Messages:        append([]model.ChatMessage(nil), e.messages...),
		IsTyping:        e.pendingSends > 0,
		PromptDismissed: e.promptDismissed,
		ShowPrompt:      e.cfg.ShowChatPrompt && !e.promptDismissed && !e.visible,
		CanReconnect:    e.phase == PhaseDisconnected && e.cfg.DisconnectSettings.ShowReconnectButton,
	}
	if e.userInfo != nil {
		info := *e.userInfo
		s.UserInfo = &info
	}
	return s
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}
