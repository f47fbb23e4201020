// Package domain contains core concepts of the chat system.
// This file defines Message forms and their field constraints.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"chat-relay/errors"
)

// SystemSender is the reserved display name for synthetic notices
// (welcome, leave). Never user-authored.
const SystemSender = "system"

// ChatMessage is the wire/broadcast form of a message.
// Text and MediaURL are both optional; a message with neither is
// accepted and broadcast as-is. The empty string means absent.
type ChatMessage struct {
	Sender    string    `json:"sender" validate:"required,max=80"`
	Text      string    `json:"text" validate:"max=2000"`
	MediaURL  string    `json:"mediaUrl,omitempty" validate:"omitempty,max=1000,url"`
	Timestamp time.Time `json:"timestamp"`
}

// StoredMessage is a persisted ChatMessage plus the storage id
// assigned at append time. The id is strictly increasing and defines
// recency order; it is never exposed as an external identifier.
type StoredMessage struct {
	ID        uint64    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var validate = validator.New()

// Normalize maps blank fields to absent, as the persisted schema
// stores them as NULL-equivalents.
func (m ChatMessage) Normalize() ChatMessage {
	m.Sender = strings.TrimSpace(m.Sender)
	if strings.TrimSpace(m.Text) == "" {
		m.Text = ""
	}
	if strings.TrimSpace(m.MediaURL) == "" {
		m.MediaURL = ""
	}
	return m
}

// Validate enforces the field constraints of the persisted schema:
// sender required and at most 80 characters, text at most 2000,
// media URL absolute and at most 1000.
func (m ChatMessage) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

// System builds a synthetic notice. Notices are broadcast-only and
// never persisted.
func System(text string) ChatMessage {
	return ChatMessage{Sender: SystemSender, Text: text, Timestamp: time.Now().UTC()}
}

// Wire converts a persisted message back to its broadcast form.
// An absent text comes back as the empty string.
func (s StoredMessage) Wire() ChatMessage {
	return ChatMessage{
		Sender:    s.Sender,
		Text:      s.Text,
		MediaURL:  s.MediaURL,
		Timestamp: s.Timestamp,
	}
}
