package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
	"github.com/anirudh9911/AI-Chatbot/internal/interfaces"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/service"
	"github.com/anirudh9911/AI-Chatbot/internal/transcript"
)

const maxDocumentBytes = 1 << 20

// Document kinds accepted by HandleValidateMessage.
const (
	kindMessage    = "message"
	kindSearchInfo = "searchInfo"
	kindTranscript = "transcript"
)

// ChatHandler handles HTTP requests for chats, messages and settings.
type ChatHandler struct {
	chatService     interfaces.ChatService
	settingsService interfaces.SettingsService
}

func NewChatHandler(chatSvc interfaces.ChatService, settingsSvc interfaces.SettingsService) *ChatHandler {
	return &ChatHandler{chatService: chatSvc, settingsService: settingsSvc}
}

// GetSettings godoc
// @Summary      Get settings
// @Description  Returns the current application settings.
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  service.Settings
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/settings [get]
func (h *ChatHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.Get(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary      Update settings
// @Description  Validates and stores new application settings.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings  body      service.Settings  true  "New settings"
// @Success      200       {object}  StatusResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      500       {object}  ErrorResponse
// @Router       /v1/settings [post]
func (h *ChatHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings service.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request payload", app_errors.ErrValidation))
		return
	}
	if err := h.settingsService.Save(r.Context(), &settings); err != nil {
		respondWithError(w, err)
		return
	}
	slog.Info("Settings updated", "main_model", settings.MainModel, "support_model", settings.SupportModel)
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GetChats godoc
// @Summary      List chats
// @Description  Returns all chats, most recently updated first.
// @Tags         Chats
// @Produce      json
// @Success      200  {array}   model.Chat
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/chats [get]
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.ListChats(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, chats)
}

// GetChat godoc
// @Summary      Get a chat
// @Description  Returns a chat with its full transcript.
// @Tags         Chats
// @Produce      json
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  model.FullChat
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [get]
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	fullChat, err := h.chatService.GetFullChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fullChat)
}

// UpdateChatTitle godoc
// @Summary      Rename a chat
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Param        chatID  path      string              true  "Chat ID"
// @Param        title   body      UpdateTitleRequest  true  "New title"
// @Success      200     {object}  StatusResponse
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID}/title [put]
func (h *ChatHandler) UpdateChatTitle(w http.ResponseWriter, r *http.Request) {
	var req UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request payload", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(&req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.chatService.UpdateChatTitle(r.Context(), chi.URLParam(r, "chatID"), req.Title); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleDeleteChat godoc
// @Summary      Delete a chat
// @Tags         Chats
// @Param        chatID  path  string  true  "Chat ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [delete]
func (h *ChatHandler) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.DeleteChat(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearMessages godoc
// @Summary      Clear a transcript
// @Description  Removes every message of a chat and keeps the chat.
// @Tags         Messages
// @Param        chatID  path  string  true  "Chat ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /v1/chats/{chatID}/messages [delete]
func (h *ChatHandler) HandleClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.ClearTranscript(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteMessage godoc
// @Summary      Delete a message
// @Description  Removes one completed message. Loading messages can not be deleted.
// @Tags         Messages
// @Param        chatID     path  string   true  "Chat ID"
// @Param        messageID  path  integer  true  "Message ID"
// @Success      204
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /v1/chats/{chatID}/messages/{messageID} [delete]
func (h *ChatHandler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		respondWithError(w, fmt.Errorf("%w: message id must be an integer", app_errors.ErrValidation))
		return
	}
	if err := h.chatService.DeleteMessage(r.Context(), chi.URLParam(r, "chatID"), messageID); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleValidateMessage godoc
// @Summary      Validate a chat document
// @Description  Checks a message, search info or transcript document. The kind is taken from the query or inferred: arrays are transcripts, objects are messages.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        kind  query     string  false  "message, searchInfo or transcript"
// @Success      200   {object}  ValidationResponse
// @Failure      400   {object}  ErrorResponse
// @Router       /v1/messages/validate [post]
func (h *ChatHandler) HandleValidateMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		respondWithError(w, fmt.Errorf("%w: could not read request body", app_errors.ErrValidation))
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = kindMessage
		if gjson.ParseBytes(body).IsArray() {
			kind = kindTranscript
		}
	}

	var decoded any
	switch kind {
	case kindMessage:
		decoded, err = model.DecodeMessage(body)
	case kindSearchInfo:
		decoded, err = model.DecodeSearchInfo(body)
	case kindTranscript:
		decoded, err = transcript.Decode(body)
	default:
		respondWithError(w, fmt.Errorf("%w: unknown document kind %q", app_errors.ErrValidation, kind))
		return
	}

	resp := ValidationResponse{Kind: kind}
	if err != nil {
		var schemaErr *model.SchemaError
		switch {
		case errors.As(err, &schemaErr):
			resp.Problems = schemaErr.Problems
		case errors.Is(err, app_errors.ErrValidation), errors.Is(err, app_errors.ErrConflict):
			resp.Error = err.Error()
		default:
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, resp)
		return
	}

	normalized, err := json.Marshal(decoded)
	if err != nil {
		respondWithError(w, err)
		return
	}
	resp.Valid = true
	resp.Normalized = normalized
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleStreamMessage godoc
// @Summary      Send a message
// @Description  Stores the user message and streams the assistant reply as Server-Sent Events. Each event carries a message snapshot, a text delta or the final done marker; failures are sent as `event: error`.
// @Tags         Messages
// @Accept       json
// @Produce      text/event-stream
// @Param        message  body      service.CreateMessageRequest  true  "New message"
// @Success      200      {object}  model.StreamEvent
// @Router       /v1/chats/messages [post]
func (h *ChatHandler) HandleStreamMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var req service.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Error decoding request body", "error", err)
		sendStreamError(w, "Invalid request body")
		return
	}
	if err := validateRequest(&req); err != nil {
		sendStreamError(w, err.Error())
		return
	}

	streamChan := make(chan model.StreamEvent)
	go h.chatService.HandleNewMessage(r.Context(), &req, streamChan)

	disconnected := false
	for ev := range streamChan {
		// Keep draining after a disconnect so the producer can finish.
		if disconnected {
			continue
		}
		if ev.Error != "" {
			sendStreamError(w, ev.Error)
			continue
		}
		if err := writeStreamEvent(w, ev); err != nil {
			slog.Info("Client disconnected from stream", "error", err)
			disconnected = true
		}
	}
}
