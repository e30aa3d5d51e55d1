package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/daghondi/ghondiclaude.tech/internal/service"
)

// Email provider events that remove the recipient from the list.
var suppressionEvents = map[string]string{
	"email.bounced":    "bounce",
	"email.complained": "complaint",
}

// svix-signed providers (Resend) send svix-* headers; the standard names are webhook-*.
var svixHeaders = map[string]string{
	"svix-id":        "webhook-id",
	"svix-timestamp": "webhook-timestamp",
	"svix-signature": "webhook-signature",
}

type EmailWebhookHandler struct {
	subscribers *service.SubscriberService
	verifier    *standardwebhooks.Webhook
}

// NewEmailWebhookHandler verifies signatures when secret is set. Without a
// secret, payloads are accepted unverified, which is only meant for development.
func NewEmailWebhookHandler(subscribers *service.SubscriberService, secret string) (*EmailWebhookHandler, error) {
	h := &EmailWebhookHandler{subscribers: subscribers}
	if secret == "" {
		slog.Warn("email webhook has no secret configured, skipping signature verification")
		return h, nil
	}

	wh, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, err
	}
	h.verifier = wh
	return h, nil
}

type emailEvent struct {
	Type string `json:"type"`
	Data struct {
		To []string `json:"to"`
	} `json:"data"`
}

func (h *EmailWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	if h.verifier != nil {
		headers := r.Header.Clone()
		for from, to := range svixHeaders {
			if headers.Get(to) == "" && headers.Get(from) != "" {
				headers.Set(to, headers.Get(from))
			}
		}

		err = h.verifier.Verify(payload, headers)
		if err != nil {
			slog.Warn("email webhook signature rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	var event emailEvent
	err = json.Unmarshal(payload, &event)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	slog.Info("email webhook received", "event_type", event.Type)

	reason, ok := suppressionEvents[event.Type]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	n, err := h.subscribers.Suppress(r.Context(), event.Data.To, reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("email webhook suppressed recipients", "event_type", event.Type, "count", n)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
