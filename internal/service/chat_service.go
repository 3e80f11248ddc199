package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
	"github.com/anirudh9911/AI-Chatbot/internal/llm"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/repository"
	"github.com/anirudh9911/AI-Chatbot/internal/search"
	"github.com/anirudh9911/AI-Chatbot/internal/transcript"
)

// Searcher runs a web search and reports its progress.
type Searcher interface {
	Run(ctx context.Context, query string, limit int, onProgress func(model.SearchInfo)) model.SearchInfo
}

// SettingsReader is the part of the settings service a chat exchange needs.
type SettingsReader interface {
	Get(ctx context.Context) (*Settings, error)
}

// CreateMessageRequest is a new user message sent by the client.
type CreateMessageRequest struct {
	ChatID      string `json:"chat_id"`
	Content     string `json:"content" validate:"required"`
	Type        string `json:"type"`
	Model       string `json:"model"`
	WebSearch   bool   `json:"web_search"`
	SearchQuery string `json:"search_query"`
}

// ErrChatBusy is returned while a reply is being generated for the chat.
var ErrChatBusy = fmt.Errorf("%w: a reply is already being generated for this chat", app_errors.ErrConflict)

const titleSystemPrompt = "You are an expert at creating short, concise titles for conversations. Respond with only the title, and nothing else."

type ChatService struct {
	repo     repository.Repository
	llm      llm.LLMProvider
	settings SettingsReader
	searcher Searcher

	busyMu sync.Mutex
	busy   map[string]struct{}

	background sync.WaitGroup
}

// NewChatService wires the chat logic. searcher may be nil, in which case web
// search requests are answered without a search.
func NewChatService(repo repository.Repository, llmProvider llm.LLMProvider, settings SettingsReader, searcher Searcher) *ChatService {
	return &ChatService{
		repo:     repo,
		llm:      llmProvider,
		settings: settings,
		searcher: searcher,
		busy:     make(map[string]struct{}),
	}
}

// Wait blocks until background work such as title generation has finished.
func (s *ChatService) Wait() {
	s.background.Wait()
}

func (s *ChatService) ListChats(ctx context.Context) ([]*model.Chat, error) {
	return s.repo.GetChats(ctx)
}

// GetFullChat retrieves a chat's metadata and its transcript.
func (s *ChatService) GetFullChat(ctx context.Context, chatID string) (*model.FullChat, error) {
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("could not get chat: %w", translate(err))
	}
	messages, err := s.repo.GetMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.FullChat{Chat: *chat, Messages: messages}, nil
}

func (s *ChatService) UpdateChatTitle(ctx context.Context, chatID, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	slog.Info("Updating chat title", "chat_id", chatID, "title", newTitle)
	return translate(s.repo.UpdateChatTitle(ctx, chatID, newTitle))
}

// DeleteChat deletes a chat and its messages. A chat that is producing a reply
// can not be deleted.
func (s *ChatService) DeleteChat(ctx context.Context, chatID string) error {
	if !s.acquire(chatID) {
		return ErrChatBusy
	}
	defer s.release(chatID)

	slog.Info("Deleting chat", "chat_id", chatID)
	return translate(s.repo.DeleteChat(ctx, chatID))
}

// DeleteMessage removes one completed message from a transcript.
func (s *ChatService) DeleteMessage(ctx context.Context, chatID string, messageID int64) error {
	messages, err := s.repo.GetMessages(ctx, chatID)
	if err != nil {
		return fmt.Errorf("could not get messages: %w", err)
	}
	tr, err := transcript.New(messages...)
	if err != nil {
		return err
	}
	msg, ok := tr.Get(messageID)
	if !ok {
		return fmt.Errorf("%w: message %d in chat %s", app_errors.ErrNotFound, messageID, chatID)
	}
	if msg.Loading() {
		return fmt.Errorf("%w: message %d is still loading", app_errors.ErrConflict, messageID)
	}
	return translate(s.repo.DeleteMessage(ctx, chatID, messageID))
}

// ClearTranscript removes every message of a chat but keeps the chat.
func (s *ChatService) ClearTranscript(ctx context.Context, chatID string) error {
	if !s.acquire(chatID) {
		return ErrChatBusy
	}
	defer s.release(chatID)

	if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		return translate(err)
	}
	slog.Info("Clearing transcript", "chat_id", chatID)
	return s.repo.ClearMessages(ctx, chatID)
}

// exchange carries the state of one HandleNewMessage call.
type exchange struct {
	chatID     string
	tr         *transcript.Transcript
	out        chan<- model.StreamEvent
	ctx        context.Context
	persistCtx context.Context
}

func (e *exchange) emit(ev model.StreamEvent) {
	ev.ChatID = e.chatID
	select {
	case e.out <- ev:
	case <-e.ctx.Done():
	}
}

func (e *exchange) emitMessage(m model.Message) {
	e.emit(model.StreamEvent{Message: &m})
}

func (e *exchange) fail(msg string) {
	e.emit(model.StreamEvent{Error: msg, Done: true})
}

// HandleNewMessage stores the user message, optionally searches the web, and
// streams the assistant reply. Every event is sent on streamChan, which is
// closed when the exchange ends.
func (s *ChatService) HandleNewMessage(ctx context.Context, req *CreateMessageRequest, streamChan chan<- model.StreamEvent) {
	defer close(streamChan)

	isNewChat := req.ChatID == ""
	chatID := req.ChatID
	if isNewChat {
		chatID = uuid.NewString()
	}
	ex := &exchange{
		chatID:     chatID,
		out:        streamChan,
		ctx:        ctx,
		persistCtx: context.WithoutCancel(ctx),
	}

	if !s.acquire(chatID) {
		ex.fail(ErrChatBusy.Error())
		return
	}
	defer s.release(chatID)

	// Step 1: settings and chat
	settings, err := s.settings.Get(ctx)
	if err != nil {
		slog.Error("Could not load settings", "error", err)
		ex.fail("Could not load settings")
		return
	}
	modelName := req.Model
	if modelName == "" {
		modelName = settings.MainModel
	}

	if isNewChat {
		now := time.Now().UTC()
		chat := &model.Chat{ID: chatID, Title: truncate(req.Content, 50), Model: modelName, CreatedAt: now, UpdatedAt: now}
		if err := s.repo.CreateChat(ctx, chat); err != nil {
			slog.Error("Error creating chat", "error", err)
			ex.fail("Could not create chat")
			return
		}
	} else if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		slog.Warn("Error getting chat", "chat_id", chatID, "error", err)
		ex.fail("Could not find chat")
		return
	}

	// Step 2: transcript and user message
	history, err := s.repo.GetMessages(ctx, chatID)
	if err != nil {
		slog.Error("Error getting message history", "chat_id", chatID, "error", err)
		ex.fail("Could not load messages")
		return
	}
	if ex.tr, err = transcript.New(history...); err != nil {
		slog.Error("Stored transcript is inconsistent", "chat_id", chatID, "error", err)
		ex.fail("Could not load messages")
		return
	}

	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	userMsg, err := s.appendMessage(ex, model.Message{IsUser: true, Type: msgType, Content: req.Content})
	if err != nil {
		ex.fail("Could not save message")
		return
	}
	ex.emitMessage(userMsg)

	// Step 3: loading assistant message
	query := strings.TrimSpace(req.SearchQuery)
	if query == "" {
		query = strings.TrimSpace(req.Content)
	}
	searching := req.WebSearch && s.searcher != nil && query != ""
	pending := model.Message{Type: model.MessageTypeText, IsLoading: model.Bool(true)}
	if searching {
		info := model.NewSearchInfo(query)
		pending.SearchInfo = &info
	}
	assistant, err := s.appendMessage(ex, pending)
	if err != nil {
		ex.fail("Could not save message")
		return
	}
	ex.emitMessage(assistant)

	// Step 4: web search
	var searchPrompt string
	if searching {
		final := s.searcher.Run(ctx, query, settings.SearchResultLimit, func(info model.SearchInfo) {
			s.updateMessage(ex, assistant.ID, func(m *model.Message) { m.SearchInfo = &info })
		})
		searchPrompt = search.ContextPrompt(final)
	}

	// Step 5: model reply
	llmReq := &llm.GenerateRequest{
		Model:    modelName,
		Messages: buildPrompt(settings.SystemPrompt, searchPrompt, ex.tr.Messages()),
	}
	reply, streamErr := s.streamReply(ex, llmReq, assistant.ID)

	// Step 6: complete the assistant message
	completed, err := ex.tr.Complete(assistant.ID, func(m *model.Message) {
		m.Content = reply
		if streamErr != nil && reply == "" {
			m.Type = model.MessageTypeError
			m.Content = streamErr.Error()
		}
	})
	if err != nil {
		slog.Error("Could not complete assistant message", "chat_id", chatID, "error", err)
	} else {
		if err := s.repo.UpdateMessage(ex.persistCtx, chatID, &completed); err != nil {
			slog.Error("CRITICAL: Failed to save assistant message", "chat_id", chatID, "error", err)
		}
		ex.emitMessage(completed)
	}

	if streamErr != nil {
		slog.Warn("Reply stream failed", "chat_id", chatID, "error", streamErr)
		ex.fail(streamErr.Error())
	} else {
		ex.emit(model.StreamEvent{Done: true})
	}

	// Step 7: title for new chats
	if isNewChat && streamErr == nil && reply != "" {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.generateTitle(context.Background(), chatID, settings.SupportModel, req.Content, reply)
		}()
	}
}

func (s *ChatService) appendMessage(ex *exchange, m model.Message) (model.Message, error) {
	added, err := ex.tr.Append(m)
	if err != nil {
		slog.Error("Could not append message", "chat_id", ex.chatID, "error", err)
		return model.Message{}, err
	}
	if err := s.repo.AddMessage(ex.ctx, ex.chatID, &added); err != nil {
		slog.Error("Error adding message", "chat_id", ex.chatID, "error", err)
		return model.Message{}, err
	}
	return added, nil
}

// updateMessage changes a loading message, persists it and emits the snapshot.
func (s *ChatService) updateMessage(ex *exchange, id int64, fn func(*model.Message)) {
	updated, err := ex.tr.Update(id, fn)
	if err != nil {
		slog.Warn("Could not update message", "chat_id", ex.chatID, "message_id", id, "error", err)
		return
	}
	if err := s.repo.UpdateMessage(ex.persistCtx, ex.chatID, &updated); err != nil {
		slog.Warn("Could not persist message update", "chat_id", ex.chatID, "message_id", id, "error", err)
	}
	ex.emitMessage(updated)
}

// streamReply forwards model output as deltas and returns the accumulated
// text. On failure the partial text is returned with the error.
func (s *ChatService) streamReply(ex *exchange, req *llm.GenerateRequest, messageID int64) (string, error) {
	streamCtx, cancel := context.WithCancel(ex.ctx)
	defer cancel()

	llmStreamChan := make(chan llm.StreamResponse)
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.llm.GenerateStream(streamCtx, req, llmStreamChan)
	}()

	var reply strings.Builder
	var streamErr error
	for chunk := range llmStreamChan {
		if streamErr != nil {
			continue
		}
		if chunk.Error != "" {
			streamErr = errors.New(chunk.Error)
			cancel()
			continue
		}
		if chunk.Content != "" {
			reply.WriteString(chunk.Content)
			if _, err := ex.tr.Update(messageID, func(m *model.Message) { m.Content = reply.String() }); err != nil {
				slog.Warn("Could not record streamed content", "chat_id", ex.chatID, "error", err)
			}
			ex.emit(model.StreamEvent{Delta: chunk.Content})
		}
	}

	if err := <-errChan; err != nil && streamErr == nil {
		streamErr = err
	}
	return reply.String(), streamErr
}

// buildPrompt turns the completed messages of a transcript into chat turns.
func buildPrompt(systemPrompt, searchPrompt string, history []model.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	if searchPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: searchPrompt})
	}
	for _, msg := range history {
		if msg.Loading() || msg.Type == model.MessageTypeError || msg.Content == "" {
			continue
		}
		role := llm.RoleAssistant
		if msg.IsUser {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}
	return messages
}

// generateTitle asks the support model for a short title for a new chat.
func (s *ChatService) generateTitle(ctx context.Context, chatID, supportModel, userQuery, assistantResponse string) {
	if supportModel == "" {
		return
	}
	req := &llm.GenerateRequest{
		Model: supportModel,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: titleSystemPrompt},
			{
				Role: llm.RoleUser,
				Content: fmt.Sprintf("Based on the following conversation, what would be a good title?\n\n---\nUser: %s\n\nAssistant: %s\n---",
					truncate(userQuery, 150),
					truncate(assistantResponse, 200),
				),
			},
		},
	}
	resp, err := s.llm.Generate(ctx, req)
	if err != nil {
		slog.Warn("Failed to generate title", "chat_id", chatID, "error", err)
		return
	}

	newTitle := strings.Trim(strings.TrimSpace(resp.Response), `"'`)
	if newTitle == "" {
		slog.Info("Generated title was empty after cleaning", "chat_id", chatID)
		return
	}
	if err := s.repo.UpdateChatTitle(ctx, chatID, truncate(newTitle, 80)); err != nil {
		slog.Warn("Failed to update chat title", "chat_id", chatID, "error", err)
		return
	}
	slog.Info("Updated chat title", "chat_id", chatID, "title", newTitle)
}

func (s *ChatService) acquire(chatID string) bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if _, ok := s.busy[chatID]; ok {
		return false
	}
	s.busy[chatID] = struct{}{}
	return true
}

func (s *ChatService) release(chatID string) {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	delete(s.busy, chatID)
}

// translate maps repository errors to application errors.
func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", app_errors.ErrNotFound, err)
	}
	return err
}

// truncate shortens a string to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
