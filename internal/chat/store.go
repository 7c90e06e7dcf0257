package chat

import (
	"context"
	"errors"

	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/realtime"
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrSendFailed       = errors.New("message could not be sent")
	ErrNotAuthenticated = errors.New("no user identity")
	ErrNoCounterpart    = errors.New("counterpart is required")
)

// Store is the part of the backend the chat components read and write
type Store interface {
	ListConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) error
	GetMessage(ctx context.Context, id int64) (models.Message, error)
	MarkConversationRead(ctx context.Context, key models.ConversationKey, sentBy models.Role) (int64, error)
	CountUnread(ctx context.Context, userID string, role models.Role) (int, error)
	LookupRole(ctx context.Context, userID string) (models.Role, error)
	ListMessagesForUser(ctx context.Context, userID string, role models.Role) ([]models.Message, error)
	CounterpartNames(ctx context.Context, role models.Role, ids []string) (map[string]string, error)
}

// ChangeFeed delivers backend change notifications
type ChangeFeed interface {
	Subscribe(filter realtime.Filter) (<-chan realtime.Change, func())
}

const messageTable = "mensagem"
