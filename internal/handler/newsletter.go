package handler

import (
	"errors"
	"net/http"

	"github.com/daghondi/ghondiclaude.tech/internal/service"
)

type NewsletterHandler struct {
	subscribers *service.SubscriberService
}

func NewNewsletterHandler(subscribers *service.SubscriberService) *NewsletterHandler {
	return &NewsletterHandler{
		subscribers: subscribers,
	}
}

type subscribeRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type verifyResponse struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	err := decodeInput(r, &req, map[string]*string{
		"email":  &req.Email,
		"name":   &req.Name,
		"source": &req.Source,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	result, err := h.subscribers.Subscribe(r.Context(), service.SubscribeInput{
		Email:  req.Email,
		Name:   req.Name,
		Source: req.Source,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: result.Message})
}

func (h *NewsletterHandler) Verify(w http.ResponseWriter, r *http.Request) {
	_, err := h.subscribers.Verify(r.Context(), r.URL.Query().Get("token"))
	if errors.Is(err, service.ErrInvalidToken) {
		writeError(w, http.StatusBadRequest, msgInvalidToken)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Success: true, Verified: true})
}

type unsubscribeRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Unsubscribe accepts either an email address or a signed token from an
// unsubscribe link. Unknown addresses get the same answer as known ones.
func (h *NewsletterHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	err := decodeInput(r, &req, map[string]*string{
		"email": &req.Email,
		"token": &req.Token,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if req.Token != "" {
		h.unsubscribeWithToken(w, r, req.Token)
		return
	}

	result, err := h.subscribers.Unsubscribe(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: result.Message})
}

// UnsubscribeLink serves the one-click link embedded in emails.
func (h *NewsletterHandler) UnsubscribeLink(w http.ResponseWriter, r *http.Request) {
	h.unsubscribeWithToken(w, r, r.URL.Query().Get("token"))
}

func (h *NewsletterHandler) unsubscribeWithToken(w http.ResponseWriter, r *http.Request, signed string) {
	result, err := h.subscribers.UnsubscribeWithToken(r.Context(), signed)
	if errors.Is(err, service.ErrInvalidToken) {
		writeError(w, http.StatusBadRequest, msgInvalidLink)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: result.Message})
}
