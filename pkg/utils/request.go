package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// MaxMessageBytes bounds a chat request body.
const MaxMessageBytes = 64 << 10

var ErrInvalidBody = errors.New("invalid request body")

// DecodeMessage reads the user message of a chat request. JSON bodies carry it
// in "message"; anything else is taken as raw text.
func DecodeMessage(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxMessageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return string(body), nil
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return payload.Message, nil
}

// IsBlank reports whether s has no visible characters.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
