// Package validation holds the request-parameter checks shared by the
// HTTP handlers and the schema gate for external index responses.
package validation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"log/slog"
)

// ValidateRating checks a user rating is in the 1-10 range.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 10 {
		return fmt.Errorf("rating must be between 1 and 10, got %d", rating)
	}
	return nil
}

// ValidateQuery checks a search query is non-empty after trimming.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query must not be empty")
	}
	return nil
}

// ValidateRegistration checks the minimal shape of a new account.
func ValidateRegistration(login, email, password string) error {
	if strings.TrimSpace(login) == "" {
		return fmt.Errorf("login must not be empty")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email looks invalid")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		slog.Error("Failed to encode error response", slog.Any("error", err))
	}
}
