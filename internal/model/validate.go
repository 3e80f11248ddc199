package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
)

var (
	// validate holds the single instance of the validator. It caches struct
	// metadata, so it is built once and shared by every caller.
	validate *validator.Validate
	once     sync.Once
)

func getInstance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(urlEntryValidation, URLEntry{})
		validate.RegisterStructValidation(searchResultValidation, SearchResult{})
	})
	return validate
}

// Validate checks v against the rules declared in its `validate` tags and the
// struct-level rules registered for the search shapes. On failure it returns a
// wrapped app_errors.ErrValidation listing every failing field.
func Validate(v any) error {
	err := getInstance().Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: an unexpected error occurred during validation: %s", app_errors.ErrValidation, err.Error())
	}

	errorMessages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		errorMessages = append(errorMessages, fmt.Sprintf("Field '%s' failed on the '%s' tag", fieldErr.Field(), fieldErr.Tag()))
	}
	return fmt.Errorf("%w: %s", app_errors.ErrValidation, strings.Join(errorMessages, "; "))
}

// urlEntryValidation enforces the union: a record entry carries no locator
// text. An empty locator is still a locator.
func urlEntryValidation(sl validator.StructLevel) {
	entry := sl.Current().Interface().(URLEntry)
	if entry.Result != nil && entry.Text != "" {
		sl.ReportError(entry.Text, "Text", "Text", "variant", "")
	}
}

// searchResultValidation rejects Extra keys that shadow the named fields.
func searchResultValidation(sl validator.StructLevel) {
	result := sl.Current().Interface().(SearchResult)
	for _, key := range []string{resultTitleKey, resultURLKey} {
		if _, ok := result.Extra[key]; ok {
			sl.ReportError(result.Extra, "Extra", "Extra", "reserved", key)
		}
	}
}
