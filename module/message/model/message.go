package model

import (
	"strings"
	"time"
)

// ===== constants =====

const (
	MsgTableName     = "messages" // collection / table name
	DefaultListLimit = 200
	MaxListLimit     = 1000
)

// ===== message =====

// Message is one direct message. It is immutable once persisted.
type Message struct {
	ID         string    `json:"_id" bson:"_id"`
	SenderID   string    `json:"senderId" bson:"senderId"`
	ReceiverID string    `json:"receiverId" bson:"receiverId"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	Image      string    `json:"image,omitempty" bson:"image,omitempty"` // attachment reference (url)
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`             // server assigned
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Empty reports whether the message carries neither body nor attachment.
func (m *Message) Empty() bool {
	return strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.Image) == ""
}

// ListOptions pages a conversation. Results are ascending by CreatedAt.
type ListOptions struct {
	Before time.Time // only messages created strictly before; zero means no bound
	Limit  int       // newest Limit messages before the cursor
}

// Norm clamps Limit into (0, MaxListLimit].
func (o ListOptions) Norm() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	return o
}

// PairKey is the order independent conversation key for a and b.
func PairKey(a, b string) (string, string) {
	if a > b {
		a, b = b, a
	}
	return a, b
}
