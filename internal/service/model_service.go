package service

import (
	"context"

	"github.com/anirudh9911/AI-Chatbot/internal/llm"
)

// ModelService exposes the models installed in Ollama.
type ModelService struct {
	llm llm.LLMProvider
}

func NewModelService(llmProvider llm.LLMProvider) *ModelService {
	return &ModelService{llm: llmProvider}
}

// List returns all locally available models.
func (s *ModelService) List(ctx context.Context) (*llm.ListModelsResponse, error) {
	return s.llm.ListModels(ctx)
}
