package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/anirudh9911/AI-Chatbot/internal/api"
	"github.com/anirudh9911/AI-Chatbot/internal/interfaces/mocks"
	"github.com/anirudh9911/AI-Chatbot/internal/llm"
)

func setupModelHandler(t *testing.T) (*api.ModelHandler, *mocks.MockModelService) {
	mockModelSvc := mocks.NewMockModelService(t)
	handler := api.NewModelHandler(mockModelSvc)
	return handler, mockModelSvc
}

func TestModelHandler_HandleListModels(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupModelHandler(t)
		expectedResp := &llm.ListModelsResponse{Models: []llm.Model{{Name: "test-model"}}}
		mockSvc.On("List", mock.Anything).Return(expectedResp, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
		rr := httptest.NewRecorder()

		handler.HandleListModels(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp llm.ListModelsResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "test-model", resp.Models[0].Name)
	})

	t.Run("Failure", func(t *testing.T) {
		handler, mockSvc := setupModelHandler(t)
		mockSvc.On("List", mock.Anything).Return(nil, errors.New("internal error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
		rr := httptest.NewRecorder()

		handler.HandleListModels(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
