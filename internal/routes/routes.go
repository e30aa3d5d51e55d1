package routes

import (
	"fmt"
	"net/http"

	"github.com/daghondi/ghondiclaude.tech/internal/app"
	"github.com/daghondi/ghondiclaude.tech/internal/handler"
	"github.com/daghondi/ghondiclaude.tech/internal/middleware"
	"github.com/daghondi/ghondiclaude.tech/internal/model"
)

// maxBodyBytes comfortably fits the largest contact message.
const maxBodyBytes = 64 << 10

func SetupRoutes(app *app.App) (http.Handler, error) {
	// Handlers
	newsletter := handler.NewNewsletterHandler(app.SubscriberService)
	contact := handler.NewContactHandler(app.ContactService)
	content := handler.NewContentHandler(app.ContentService)
	health := handler.NewHealthHandler(app.DB)
	webhook, err := handler.NewEmailWebhookHandler(app.SubscriberService, app.Cfg.EmailWebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email webhook: %w", err)
	}

	mux := http.NewServeMux()

	// Form endpoints share one per-IP budget per path
	limited := middleware.RateLimit(app.Limiter, app.Cfg.TrustProxyHeaders)

	// Newsletter
	mux.Handle("POST /subscribe", limited(http.HandlerFunc(newsletter.Subscribe)))
	mux.Handle("GET /verify", limited(http.HandlerFunc(newsletter.Verify)))
	mux.Handle("POST /unsubscribe", limited(http.HandlerFunc(newsletter.Unsubscribe)))
	mux.HandleFunc("GET /unsubscribe", newsletter.UnsubscribeLink)

	// Contact
	mux.Handle("POST /contact", limited(http.HandlerFunc(contact.Submit)))

	// Content
	mux.HandleFunc("GET /api/posts", content.List(model.CollectionBlog))
	mux.HandleFunc("GET /api/posts/{slug}", content.Get(model.CollectionBlog))
	mux.HandleFunc("GET /api/projects", content.List(model.CollectionProjects))
	mux.HandleFunc("GET /api/projects/{slug}", content.Get(model.CollectionProjects))

	// Webhooks
	mux.HandleFunc("POST /webhooks/email", webhook.Handle)

	// Health
	mux.HandleFunc("GET /healthz", health.Check)

	return middleware.Chain(mux,
		middleware.Recover,
		middleware.RequestLogging,
		middleware.CORS(app.Cfg.AllowedOrigins),
		middleware.MaxBody(maxBodyBytes),
	), nil
}
