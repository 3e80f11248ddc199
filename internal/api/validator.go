package api

import "github.com/anirudh9911/AI-Chatbot/internal/model"

// validateRequest checks a request DTO against its `validate` tags. It shares
// the validator singleton of the model package, so request DTOs and the chat
// data shapes report failures in the same format.
func validateRequest(payload interface{}) error {
	return model.Validate(payload)
}
