package interfaces

import (
	"context"

	"github.com/anirudh9911/AI-Chatbot/internal/llm"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/service"
)

// The API layer depends on these interfaces rather than on the concrete
// services, so handlers can be tested against mocks.

// ChatService defines the contract for chat-related business logic.
type ChatService interface {
	ListChats(ctx context.Context) ([]*model.Chat, error)
	GetFullChat(ctx context.Context, chatID string) (*model.FullChat, error)
	UpdateChatTitle(ctx context.Context, chatID, newTitle string) error
	DeleteChat(ctx context.Context, chatID string) error
	DeleteMessage(ctx context.Context, chatID string, messageID int64) error
	ClearTranscript(ctx context.Context, chatID string) error
	HandleNewMessage(ctx context.Context, req *service.CreateMessageRequest, streamChan chan<- model.StreamEvent)
}

// ModelService defines the contract for model listing.
type ModelService interface {
	List(ctx context.Context) (*llm.ListModelsResponse, error)
}

// SettingsService defines the contract for managing application settings.
type SettingsService interface {
	InitAndGet(ctx context.Context, defaultSystemPrompt string) (*service.Settings, error)
	Get(ctx context.Context) (*service.Settings, error)
	Save(ctx context.Context, settings *service.Settings) error
}

var (
	_ ChatService     = (*service.ChatService)(nil)
	_ ModelService    = (*service.ModelService)(nil)
	_ SettingsService = (*service.SettingsService)(nil)
)
