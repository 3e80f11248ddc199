package main

import (
	"os"

	"github.com/anirudh9911/AI-Chatbot/internal/app"
)

// @title           AI Chatbot API
// @version         1.0
// @description     Chat backend with streamed Ollama replies and optional web search.
// @BasePath        /api
func main() {
	os.Exit(app.Run())
}
