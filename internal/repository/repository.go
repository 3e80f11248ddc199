package repository

import (
	"context"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
)

// Repository defines the interface for data storage operations.
type Repository interface {
	CreateChat(ctx context.Context, chat *model.Chat) error
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	GetChats(ctx context.Context) ([]*model.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID, newTitle string) error
	DeleteChat(ctx context.Context, chatID string) error

	// Messages are keyed by (chatID, message.ID) and returned in id order.
	AddMessage(ctx context.Context, chatID string, message *model.Message) error
	UpdateMessage(ctx context.Context, chatID string, message *model.Message) error
	GetMessages(ctx context.Context, chatID string) ([]model.Message, error)
	DeleteMessage(ctx context.Context, chatID string, messageID int64) error
	ClearMessages(ctx context.Context, chatID string) error

	// FinalizeLoadingMessages completes every message still marked as loading
	// and returns how many were changed.
	FinalizeLoadingMessages(ctx context.Context) (int64, error)
}
