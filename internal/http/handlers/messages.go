package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/wolfman30/dental-assistant-bot/internal/bot"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const maxActivityBytes = 1 << 20

// ActivityHandler is the part of bot.Bot the messages endpoint needs.
type ActivityHandler interface {
	Handle(ctx context.Context, act bot.Activity, out bot.Emitter) error
}

// MessagesHandler accepts channel activities and answers inline.
type MessagesHandler struct {
	bot    ActivityHandler
	logger *logging.Logger
}

func NewMessagesHandler(b ActivityHandler, logger *logging.Logger) *MessagesHandler {
	if b == nil {
		panic("handlers: bot is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MessagesHandler{bot: b, logger: logger}
}

type messagesResponse struct {
	Activities []bot.Activity `json:"activities"`
}

// ServeHTTP handles POST /api/messages. Replies are returned in the response
// body; an empty list means the activity needed no answer.
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var act bot.Activity
	dec := json.NewDecoder(io.LimitReader(r.Body, maxActivityBytes))
	if err := dec.Decode(&act); err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity body")
		return
	}
	if strings.TrimSpace(act.Type) == "" {
		writeError(w, http.StatusBadRequest, "activity type is required")
		return
	}

	out := &bot.Collector{}
	if err := h.bot.Handle(r.Context(), act, out); err != nil {
		switch {
		case errors.Is(err, bot.ErrMissingConversation):
			writeError(w, http.StatusBadRequest, "conversation.id is required")
		case r.Context().Err() != nil:
			h.logger.Info("client went away before reply", "conversation_id", act.Conversation.ID)
		default:
			h.logger.Error("failed to handle activity", "conversation_id", act.Conversation.ID, "activity_id", act.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to handle activity")
		}
		return
	}

	if out.Replies == nil {
		out.Replies = []bot.Activity{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Activities: out.Replies})
}

// HealthCheck returns a simple health check response.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
