package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/consertja/consertja/internal/models"
)

// Op is the kind of row change carried by a notification
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync is published after the listener reconnected; notifications
	// may have been lost in between.
	OpResync Op = "RESYNC"
)

// Change is one notification from the backend change feed
type Change struct {
	Op     Op              `json:"op"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record,omitempty"`
}

// DecodeChange parses a pg_notify payload
func DecodeChange(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("invalid change payload: %w", err)
	}
	if c.Op == "" {
		return Change{}, fmt.Errorf("invalid change payload: missing op")
	}
	return c, nil
}

// Message decodes the record of a mensagem change
func (c Change) Message() (models.Message, error) {
	var m models.Message
	if len(c.Record) == 0 {
		return m, fmt.Errorf("change has no record")
	}
	if err := json.Unmarshal(c.Record, &m); err != nil {
		return m, fmt.Errorf("invalid mensagem record: %w", err)
	}
	return m, nil
}

// Complete reports whether the record carries the whole row. Notifications
// from the database trigger only name the row; the body has to be fetched.
func (c Change) Complete() bool {
	var row struct {
		Text   *string          `json:"texto"`
		SentAt *json.RawMessage `json:"data_mensagem"`
	}
	if len(c.Record) == 0 || json.Unmarshal(c.Record, &row) != nil {
		return false
	}
	return row.Text != nil && row.SentAt != nil
}

// Filter selects the changes a subscriber receives
type Filter func(Change) bool

// Table matches every change on the table, plus resync notifications
func Table(name string) Filter {
	return func(c Change) bool {
		return c.Op == OpResync || c.Table == name
	}
}

// Inserts matches inserts on the table, plus resync notifications
func Inserts(name string) Filter {
	return func(c Change) bool {
		return c.Op == OpResync || (c.Table == name && c.Op == OpInsert)
	}
}
