package models

import (
	"time"
)

// Message represents a row of the mensagem table
type Message struct {
	ID         int64     `json:"id_mensagem"`
	ClientID   string    `json:"id_cliente"`
	ProviderID string    `json:"id_prestador"`
	Text       string    `json:"texto"`
	SentAt     time.Time `json:"data_mensagem"`
	SentBy     Role      `json:"enviado_por"`
	Read       bool      `json:"lida"`
}

// Key returns the conversation the message belongs to
func (m Message) Key() ConversationKey {
	return ConversationKey{ClientID: m.ClientID, ProviderID: m.ProviderID}
}

// SenderID returns the identity of the participant who wrote the message
func (m Message) SenderID() string {
	if m.SentBy == RoleProvider {
		return m.ProviderID
	}
	return m.ClientID
}

// RecipientID returns the identity of the participant the message is addressed to
func (m Message) RecipientID() string {
	if m.SentBy == RoleProvider {
		return m.ClientID
	}
	return m.ProviderID
}

// ConversationKey identifies a thread between one client and one provider.
// Both directions of the conversation share the same key.
type ConversationKey struct {
	ClientID   string `json:"id_cliente"`
	ProviderID string `json:"id_prestador"`
}

// KeyFor builds the conversation key between the session user and a counterpart
func KeyFor(self Session, counterpartID string) ConversationKey {
	if self.Role == RoleProvider {
		return ConversationKey{ClientID: counterpartID, ProviderID: self.UserID}
	}
	return ConversationKey{ClientID: self.UserID, ProviderID: counterpartID}
}

// Participant returns the identity holding the given role in the conversation
func (k ConversationKey) Participant(role Role) string {
	if role == RoleProvider {
		return k.ProviderID
	}
	return k.ClientID
}

// ConversationSummary is one row of the chat list. It is derived from the
// message set and never stored.
type ConversationSummary struct {
	CounterpartID   string    `json:"counterpart_id"`
	CounterpartName string    `json:"counterpart_name"`
	LastMessage     string    `json:"last_message"`
	LastAt          time.Time `json:"last_at"`
	UnreadCount     int       `json:"unread_count"`
}

// MessageRequest is the structure for message creation requests
type MessageRequest struct {
	Content string `json:"content" binding:"required,min=1"`
}
