package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/daghondi/ghondiclaude.tech/internal/service"
)

const (
	msgInternal       = "Something went wrong. Please try again later."
	msgInvalidBody    = "Invalid request body"
	msgInvalidToken   = "Invalid or expired verification token"
	msgInvalidLink    = "Invalid or expired unsubscribe link"
	msgNotFound       = "Not found"
	msgInvalidPayload = "Invalid webhook payload"
)

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service errors to responses. Store and unexpected
// errors are logged with their cause and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  verr.Message,
			Fields: map[string]string{verr.Field: verr.Message},
		})
		return
	}

	slog.Error("request failed", "error", err, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// decodeInput fills dst from a JSON body, or from form values when the
// request is a classic form post. form maps form keys to destination fields.
func decodeInput(r *http.Request, dst any, form map[string]*string) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return json.NewDecoder(r.Body).Decode(dst)
	}

	err := r.ParseForm()
	if err != nil {
		return err
	}
	for key, field := range form {
		*field = r.PostForm.Get(key)
	}
	return nil
}
