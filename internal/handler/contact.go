package handler

import (
	"net/http"

	"github.com/daghondi/ghondiclaude.tech/internal/service"
)

type ContactHandler struct {
	contacts *service.ContactService
}

func NewContactHandler(contacts *service.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	err := decodeInput(r, &req, map[string]*string{
		"name":    &req.Name,
		"email":   &req.Email,
		"subject": &req.Subject,
		"message": &req.Message,
		"source":  &req.Source,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	_, err = h.contacts.Submit(r.Context(), service.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		Source:  req.Source,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: service.MessageContactReceived})
}
