package model

import (
	"strings"
	"time"
)

type MessageStatus string

const (
	MessageStatusNone      MessageStatus = ""
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusSeen      MessageStatus = "seen"
)

// Rank orders statuses along sending -> delivered -> seen. Unknown statuses rank 0.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusSending:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusSeen:
		return 3
	}
	return 0
}

// ChatMessage is one entry of a widget session thread. Status only moves forward.
type ChatMessage struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	IsUser    bool          `json:"isUser"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status,omitempty"`
}

// UserInfo is the gate form. Only the fields marked in RequiredFields are checked.
type UserInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (u UserInfo) Get(field RequiredField) string {
	switch field {
	case FieldName:
		return u.Name
	case FieldEmail:
		return u.Email
	case FieldPhone:
		return u.Phone
	}
	return ""
}

func (u UserInfo) Trimmed() UserInfo {
	return UserInfo{
		Name:  strings.TrimSpace(u.Name),
		Email: strings.TrimSpace(u.Email),
		Phone: strings.TrimSpace(u.Phone),
	}
}
