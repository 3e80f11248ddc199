package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Registers the generated API definitions with swag.
	_ "github.com/anirudh9911/AI-Chatbot/docs"
	"github.com/anirudh9911/AI-Chatbot/internal/metrics"
)

// NewRouter creates the chi router with every route of the application.
func NewRouter(chatHandler *ChatHandler, modelHandler *ModelHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Liveness check for container orchestration.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// JSON routes get a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/settings", chatHandler.GetSettings)
			r.Post("/settings", chatHandler.UpdateSettings)

			r.Get("/chats", chatHandler.GetChats)
			r.Get("/chats/{chatID}", chatHandler.GetChat)
			r.Put("/chats/{chatID}/title", chatHandler.UpdateChatTitle)
			r.Delete("/chats/{chatID}", chatHandler.HandleDeleteChat)
			r.Delete("/chats/{chatID}/messages", chatHandler.HandleClearMessages)
			r.Delete("/chats/{chatID}/messages/{messageID}", chatHandler.HandleDeleteMessage)

			r.Post("/messages/validate", chatHandler.HandleValidateMessage)

			r.Get("/models", modelHandler.HandleListModels)
		})

		// Streaming routes hold the connection open and must not time out.
		r.Group(func(r chi.Router) {
			r.Post("/chats/messages", chatHandler.HandleStreamMessage)
		})
	})

	return r
}
