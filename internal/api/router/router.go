package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/dental-assistant-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-assistant-bot/internal/http/middleware"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// WebchatHandler serves the browser chat surface.
type WebchatHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	HandleHistory(w http.ResponseWriter, r *http.Request)
}

// Config holds router configuration
type Config struct {
	Logger   *logging.Logger
	Messages http.Handler
	Webchat  WebchatHandler

	// Scheduler is the in-process calendar API, mounted under /scheduler
	// when the bot is not pointed at a remote scheduling service.
	Scheduler      http.Handler
	MetricsHandler http.Handler

	// Channel auth; an empty secret disables token checks.
	ChannelSecret string
	BotID         string

	RateLimitPerMin int
	// CORS is applied when it lists at least one origin.
	CORS httpmiddleware.CORSConfig
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORS))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Messages != nil {
		r.Route("/api", func(api chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerMin))
			}
			api.Use(httpmiddleware.ChannelJWT(cfg.ChannelSecret, cfg.BotID))
			api.Method(http.MethodPost, "/messages", cfg.Messages)
		})
	}

	if cfg.Webchat != nil {
		r.Route("/chat", func(chat chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				chat.Use(httpmiddleware.RateLimit(cfg.RateLimitPerMin))
			}
			chat.Get("/ws", cfg.Webchat.HandleWebSocket)
			chat.Get("/history", cfg.Webchat.HandleHistory)
		})
	}

	if cfg.Scheduler != nil {
		r.Mount("/scheduler", http.StripPrefix("/scheduler", cfg.Scheduler))
	}

	return r
}
