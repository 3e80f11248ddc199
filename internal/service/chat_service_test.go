package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
	mock_iface "github.com/anirudh9911/AI-Chatbot/internal/interfaces/mocks"
	"github.com/anirudh9911/AI-Chatbot/internal/llm"
	mock_llm "github.com/anirudh9911/AI-Chatbot/internal/llm/mocks"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/repository"
	mock_repo "github.com/anirudh9911/AI-Chatbot/internal/repository/mocks"
	"github.com/anirudh9911/AI-Chatbot/internal/service"
	mock_service "github.com/anirudh9911/AI-Chatbot/internal/service/mocks"
)

type Mocks struct {
	repo     *mock_repo.MockRepository
	llm      *mock_llm.MockLLMProvider
	settings *mock_iface.MockSettingsService
	searcher *mock_service.MockSearcher
}

func setupChatService(t *testing.T) (*service.ChatService, Mocks) {
	mocks := Mocks{
		repo:     mock_repo.NewMockRepository(t),
		llm:      mock_llm.NewMockLLMProvider(t),
		settings: mock_iface.NewMockSettingsService(t),
		searcher: mock_service.NewMockSearcher(t),
	}
	chatService := service.NewChatService(mocks.repo, mocks.llm, mocks.settings, mocks.searcher)
	return chatService, mocks
}

// streamChunks returns a GenerateStream implementation that sends chunks,
// closes the channel like the real provider and returns err.
func streamChunks(err error, chunks ...llm.StreamResponse) func(context.Context, *llm.GenerateRequest, chan<- llm.StreamResponse) error {
	return func(_ context.Context, _ *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
		defer close(ch)
		for _, c := range chunks {
			ch <- c
		}
		return err
	}
}

func collect(ch <-chan model.StreamEvent) []model.StreamEvent {
	var events []model.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func defaultSettings() *service.Settings {
	return &service.Settings{SystemPrompt: "Be helpful.", MainModel: "llama3", SupportModel: "phi3", SearchResultLimit: 3}
}

func TestChatService_UpdateChatTitle(t *testing.T) {
	ctx := context.Background()
	chatID := "chat123"

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("UpdateChatTitle", ctx, chatID, "New Title").Return(nil).Once()

		assert.NoError(t, chatService.UpdateChatTitle(ctx, chatID, "  New Title "))
	})

	t.Run("Failure - Empty title", func(t *testing.T) {
		chatService, _ := setupChatService(t)

		err := chatService.UpdateChatTitle(ctx, chatID, "   ")
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Failure - Repository returns not found", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("UpdateChatTitle", ctx, chatID, "New Title").Return(repository.ErrNotFound).Once()

		err := chatService.UpdateChatTitle(ctx, chatID, "New Title")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})
}

func TestChatService_ListChats(t *testing.T) {
	ctx := context.Background()
	chatService, mocks := setupChatService(t)

	expectedChats := []*model.Chat{{ID: "chat1"}}
	mocks.repo.On("GetChats", ctx).Return(expectedChats, nil).Once()

	chats, err := chatService.ListChats(ctx)
	assert.NoError(t, err)
	assert.Equal(t, expectedChats, chats)
}

func TestChatService_GetFullChat(t *testing.T) {
	ctx := context.Background()
	chatID := "chat123"

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)

		chat := &model.Chat{ID: chatID}
		messages := []model.Message{{ID: 1, IsUser: true, Type: "text", Content: "hi"}}
		mocks.repo.On("GetChat", ctx, chatID).Return(chat, nil).Once()
		mocks.repo.On("GetMessages", ctx, chatID).Return(messages, nil).Once()

		fullChat, err := chatService.GetFullChat(ctx, chatID)
		require.NoError(t, err)
		assert.Equal(t, chat, &fullChat.Chat)
		assert.Equal(t, messages, fullChat.Messages)
	})

	t.Run("Failure - Not found", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetChat", ctx, chatID).Return(nil, repository.ErrNotFound).Once()

		_, err := chatService.GetFullChat(ctx, chatID)
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Failure - GetMessages returns error", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetChat", ctx, chatID).Return(&model.Chat{ID: chatID}, nil).Once()
		mocks.repo.On("GetMessages", ctx, chatID).Return(nil, errors.New("db error")).Once()

		_, err := chatService.GetFullChat(ctx, chatID)
		assert.ErrorContains(t, err, "db error")
	})
}

func TestChatService_DeleteMessage(t *testing.T) {
	ctx := context.Background()
	chatID := "chat123"
	messages := []model.Message{
		{ID: 1, IsUser: true, Type: "text", Content: "hi"},
		{ID: 2, Type: "text", IsLoading: model.Bool(true)},
	}

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetMessages", ctx, chatID).Return(messages, nil).Once()
		mocks.repo.On("DeleteMessage", ctx, chatID, int64(1)).Return(nil).Once()

		assert.NoError(t, chatService.DeleteMessage(ctx, chatID, 1))
	})

	t.Run("Failure - Loading message", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetMessages", ctx, chatID).Return(messages, nil).Once()

		err := chatService.DeleteMessage(ctx, chatID, 2)
		assert.ErrorIs(t, err, app_errors.ErrConflict)
	})

	t.Run("Failure - Unknown message", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetMessages", ctx, chatID).Return(messages, nil).Once()

		err := chatService.DeleteMessage(ctx, chatID, 7)
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})
}

func TestChatService_ClearTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetChat", ctx, "chat1").Return(&model.Chat{ID: "chat1"}, nil).Once()
		mocks.repo.On("ClearMessages", ctx, "chat1").Return(nil).Once()

		assert.NoError(t, chatService.ClearTranscript(ctx, "chat1"))
	})

	t.Run("Failure - Unknown chat", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.repo.On("GetChat", ctx, "missing").Return(nil, repository.ErrNotFound).Once()

		err := chatService.ClearTranscript(ctx, "missing")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})
}

func TestChatService_HandleNewMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - New chat with web search", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.settings.On("Get", ctx).Return(defaultSettings(), nil).Once()
		mocks.repo.On("CreateChat", ctx, mock.MatchedBy(func(c *model.Chat) bool {
			return c.Title == "What is Go?" && c.Model == "llama3" && c.ID != ""
		})).Return(nil).Once()
		mocks.repo.On("GetMessages", ctx, mock.Anything).Return([]model.Message{}, nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil).Twice()
		mocks.repo.On("UpdateMessage", mock.Anything, mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil)

		mocks.searcher.On("Run", ctx, "What is Go?", 3, mock.Anything).Return(
			func(_ context.Context, query string, _ int, onProgress func(model.SearchInfo)) model.SearchInfo {
				info := model.NewSearchInfo(query)
				info.AddStage(model.StageStarted)
				onProgress(info.Clone())
				info.AddResult(model.NewSearchResult("Go", "https://go.dev/"))
				info.AddStage(model.StageDone)
				onProgress(info.Clone())
				return info
			}).Once()

		mocks.llm.On("GenerateStream", mock.Anything, mock.MatchedBy(func(req *llm.GenerateRequest) bool {
			return req.Model == "llama3" &&
				len(req.Messages) == 3 &&
				req.Messages[0].Content == "Be helpful." &&
				req.Messages[1].Role == llm.RoleSystem &&
				req.Messages[2] == llm.Message{Role: llm.RoleUser, Content: "What is Go?"}
		}), mock.Anything).Return(streamChunks(nil,
			llm.StreamResponse{Content: "Go is "},
			llm.StreamResponse{Content: "a language."},
			llm.StreamResponse{Done: true},
		)).Once()

		mocks.llm.On("Generate", mock.Anything, mock.MatchedBy(func(req *llm.GenerateRequest) bool {
			return req.Model == "phi3"
		})).Return(&llm.GenerateResponse{Response: ` "Go Basics" `}, nil).Once()
		mocks.repo.On("UpdateChatTitle", mock.Anything, mock.Anything, "Go Basics").Return(nil).Once()

		streamChan := make(chan model.StreamEvent, 32)
		chatService.HandleNewMessage(ctx, &service.CreateMessageRequest{Content: "What is Go?", WebSearch: true}, streamChan)
		chatService.Wait()
		events := collect(streamChan)

		require.Len(t, events, 8)
		chatID := events[0].ChatID
		require.NotEmpty(t, chatID)
		for _, ev := range events {
			assert.Equal(t, chatID, ev.ChatID)
		}

		user := events[0].Message
		require.NotNil(t, user)
		assert.True(t, user.IsUser)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, model.MessageTypeText, user.Type)

		pending := events[1].Message
		require.NotNil(t, pending)
		assert.Equal(t, int64(2), pending.ID)
		assert.True(t, pending.Loading())
		require.NotNil(t, pending.SearchInfo)
		assert.Empty(t, pending.SearchInfo.Stages)

		assert.Equal(t, []string{model.StageStarted}, events[2].Message.SearchInfo.Stages)
		assert.Equal(t, []string{model.StageStarted, model.StageDone}, events[3].Message.SearchInfo.Stages)
		assert.Equal(t, "Go is ", events[4].Delta)
		assert.Equal(t, "a language.", events[5].Delta)

		final := events[6].Message
		require.NotNil(t, final)
		assert.False(t, final.Loading())
		require.NotNil(t, final.IsLoading)
		assert.Equal(t, "Go is a language.", final.Content)
		require.Len(t, final.SearchInfo.URLs, 1)

		assert.True(t, events[7].Done)
		assert.Empty(t, events[7].Error)
	})

	t.Run("Failure - Stream error keeps partial content", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		history := []model.Message{
			{ID: 1, IsUser: true, Type: "text", Content: "Hello"},
			{ID: 2, Type: "text", Content: "Hi!", IsLoading: model.Bool(false)},
		}
		mocks.settings.On("Get", ctx).Return(defaultSettings(), nil).Once()
		mocks.repo.On("GetChat", ctx, "chat1").Return(&model.Chat{ID: "chat1"}, nil).Once()
		mocks.repo.On("GetMessages", ctx, "chat1").Return(history, nil).Once()
		mocks.repo.On("AddMessage", ctx, "chat1", mock.Anything).Return(nil).Twice()
		mocks.repo.On("UpdateMessage", mock.Anything, "chat1", mock.MatchedBy(func(m *model.Message) bool {
			return m.ID == 4 && m.Content == "Part" && !m.Loading() && m.Type == model.MessageTypeText
		})).Return(nil).Once()
		mocks.llm.On("GenerateStream", mock.Anything, mock.MatchedBy(func(req *llm.GenerateRequest) bool {
			// system, two history turns and the new user message; no search.
			return len(req.Messages) == 4 && req.Messages[2].Role == llm.RoleAssistant
		}), mock.Anything).Return(streamChunks(nil,
			llm.StreamResponse{Content: "Part"},
			llm.StreamResponse{Error: "model crashed"},
		)).Once()

		streamChan := make(chan model.StreamEvent, 32)
		chatService.HandleNewMessage(ctx, &service.CreateMessageRequest{ChatID: "chat1", Content: "More?"}, streamChan)
		events := collect(streamChan)

		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.True(t, last.Done)
		assert.Equal(t, "model crashed", last.Error)
		assert.Equal(t, int64(3), events[0].Message.ID)
		mocks.searcher.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - No content becomes an error message", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.settings.On("Get", ctx).Return(defaultSettings(), nil).Once()
		mocks.repo.On("GetChat", ctx, "chat1").Return(&model.Chat{ID: "chat1"}, nil).Once()
		mocks.repo.On("GetMessages", ctx, "chat1").Return([]model.Message{}, nil).Once()
		mocks.repo.On("AddMessage", ctx, "chat1", mock.Anything).Return(nil).Twice()
		mocks.repo.On("UpdateMessage", mock.Anything, "chat1", mock.MatchedBy(func(m *model.Message) bool {
			return m.Type == model.MessageTypeError && m.Content == "connection refused" && !m.Loading()
		})).Return(nil).Once()
		mocks.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Return(streamChunks(errors.New("connection refused"))).Once()

		streamChan := make(chan model.StreamEvent, 32)
		chatService.HandleNewMessage(ctx, &service.CreateMessageRequest{ChatID: "chat1", Content: "Hi"}, streamChan)
		events := collect(streamChan)

		last := events[len(events)-1]
		assert.Equal(t, "connection refused", last.Error)
	})

	t.Run("Failure - Unknown chat", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.settings.On("Get", ctx).Return(defaultSettings(), nil).Once()
		mocks.repo.On("GetChat", ctx, "missing").Return(nil, repository.ErrNotFound).Once()

		streamChan := make(chan model.StreamEvent, 4)
		chatService.HandleNewMessage(ctx, &service.CreateMessageRequest{ChatID: "missing", Content: "Hi"}, streamChan)
		events := collect(streamChan)

		require.Len(t, events, 1)
		assert.Equal(t, "Could not find chat", events[0].Error)
		assert.True(t, events[0].Done)
	})

	t.Run("Failure - Settings unavailable", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.settings.On("Get", ctx).Return(nil, errors.New("db down")).Once()

		streamChan := make(chan model.StreamEvent, 4)
		chatService.HandleNewMessage(ctx, &service.CreateMessageRequest{Content: "Hi"}, streamChan)
		events := collect(streamChan)

		require.Len(t, events, 1)
		assert.Equal(t, "Could not load settings", events[0].Error)
	})
}

func TestChatService_OneExchangePerChat(t *testing.T) {
	ctx := context.Background()
	chatService, mocks := setupChatService(t)

	started := make(chan struct{})
	release := make(chan struct{})

	mocks.settings.On("Get", ctx).Return(defaultSettings(), nil).Once()
	mocks.repo.On("GetChat", ctx, "chat1").Return(&model.Chat{ID: "chat1"}, nil).Once()
	mocks.repo.On("GetMessages", ctx, "chat1").Return([]model.Message{}, nil).Once()
	mocks.repo.On("AddMessage", ctx, "chat1", mock.Anything).Return(nil).Twice()
	mocks.repo.On("UpdateMessage", mock.Anything, "chat1", mock.Anything).Return(nil).Once()
	mocks.llm.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).Return(
		func(_ context.Context, _ *llm.GenerateRequest, ch chan<- llm.StreamResponse) error {
			defer close(ch)
			close(started)
			<-release
			ch <- llm.StreamResponse{Content: "done", Done: true}
			return nil
		}).Once()

	streamChan := make(chan model.StreamEvent, 32)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		chatService.HandleNewMessage(ctx, &service.CreateMessageRequest{ChatID: "chat1", Content: "Hi"}, streamChan)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not start")
	}

	assert.ErrorIs(t, chatService.DeleteChat(ctx, "chat1"), service.ErrChatBusy)
	assert.ErrorIs(t, chatService.ClearTranscript(ctx, "chat1"), app_errors.ErrConflict)

	second := make(chan model.StreamEvent, 4)
	chatService.HandleNewMessage(ctx, &service.CreateMessageRequest{ChatID: "chat1", Content: "Again"}, second)
	busy := collect(second)
	require.Len(t, busy, 1)
	assert.Contains(t, busy[0].Error, "already being generated")

	close(release)
	<-finished

	mocks.repo.On("DeleteChat", ctx, "chat1").Return(nil).Once()
	assert.NoError(t, chatService.DeleteChat(ctx, "chat1"))
}
