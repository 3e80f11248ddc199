package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anirudh9911/AI-Chatbot/internal/llm"
	"github.com/anirudh9911/AI-Chatbot/internal/llm/mocks"
	"github.com/anirudh9911/AI-Chatbot/internal/service"
)

func setupModelService(t *testing.T) (*service.ModelService, *mocks.MockLLMProvider) {
	mockLLMProvider := mocks.NewMockLLMProvider(t)
	modelService := service.NewModelService(mockLLMProvider)
	return modelService, mockLLMProvider
}

func TestModelService_List(t *testing.T) {
	ctx := context.Background()
	modelService, mockLLMProvider := setupModelService(t)

	expectedResponse := &llm.ListModelsResponse{
		Models: []llm.Model{{Name: "test-model"}},
	}
	expectedError := errors.New("provider error")

	testCases := []struct {
		name         string
		setupMock    func()
		expectError  bool
		expectedResp *llm.ListModelsResponse
		expectedErr  error
	}{
		{
			name: "Success",
			setupMock: func() {
				mockLLMProvider.On("ListModels", ctx).Return(expectedResponse, nil).Once()
			},
			expectedResp: expectedResponse,
		},
		{
			name: "Failure - Provider Error",
			setupMock: func() {
				mockLLMProvider.On("ListModels", ctx).Return(nil, expectedError).Once()
			},
			expectError: true,
			expectedErr: expectedError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			resp, err := modelService.List(ctx)

			if tc.expectError {
				assert.Equal(t, tc.expectedErr, err)
				assert.Nil(t, resp)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedResp, resp)
			}
		})
	}
}
