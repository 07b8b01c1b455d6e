package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/dental-assistant-bot/internal/bot"
	"github.com/wolfman30/dental-assistant-bot/internal/transcript"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const (
	channelID    = "webchat"
	historyLimit = 50
	// inboxSize bounds messages queued behind the turn in progress.
	inboxSize = 16
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Bot is the part of bot.Bot the webchat needs.
type Bot interface {
	Account() bot.ChannelAccount
	Handle(ctx context.Context, act bot.Activity, out bot.Emitter) error
	History(ctx context.Context, conversationID string, limit int64) ([]transcript.Message, error)
}

// Handler serves the browser chat socket.
type Handler struct {
	bot    Bot
	logger *logging.Logger
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified transcript entry.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func NewHandler(b Bot, logger *logging.Logger) *Handler {
	if b == nil {
		panic("webchat: bot is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{bot: b, logger: logger}
}

// ConversationID builds the canonical conversation ID for a webchat session.
func ConversationID(sessionID string) string {
	return "webchat:" + sessionID
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and runs one chat session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID != "" && !sessionIDPattern.MatchString(sessionID) {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "invalid session parameter"})
		return
	}
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	convID := ConversationID(sessionID)
	user := bot.ChannelAccount{ID: sessionID}

	// Turns are cancelled as soon as the socket goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := newSessionEmitter(conn, h.logger)
	_ = out.send(OutboundMessage{Type: "session", SessionID: sessionID})

	history := h.history(ctx, convID, historyLimit)
	if len(history) > 0 {
		_ = out.send(OutboundMessage{Type: "history", Messages: history})
	} else {
		joined := bot.Activity{
			Type:         bot.TypeConversationUpdate,
			ID:           uuid.NewString(),
			ChannelID:    channelID,
			From:         user,
			Recipient:    h.bot.Account(),
			Conversation: bot.ConversationAccount{ID: convID},
			MembersAdded: []bot.ChannelAccount{h.bot.Account(), user},
		}
		if err := h.bot.Handle(ctx, joined, out); err != nil {
			h.logger.Warn("webchat: greeting failed", "conversation_id", convID, "error", err)
		}
	}

	h.logger.Info("webchat: connection opened", "conversation_id", convID)

	inbox := make(chan InboundMessage, inboxSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range inbox {
			h.processMessage(ctx, out, convID, user, msg.Text)
		}
	}()

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "conversation_id", convID, "error", err)
			break
		}
		if msg.Type == "ping" {
			_ = out.send(OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		select {
		case inbox <- msg:
		default:
			_ = out.send(OutboundMessage{Type: "error", Text: "Please wait for a reply before sending more messages."})
		}
	}
	cancel()
	close(inbox)
	<-done
}

func (h *Handler) processMessage(ctx context.Context, out *sessionEmitter, convID string, user bot.ChannelAccount, text string) {
	_ = out.send(OutboundMessage{Type: "typing"})
	act := bot.Activity{
		Type:         bot.TypeMessage,
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		ChannelID:    channelID,
		From:         user,
		Recipient:    h.bot.Account(),
		Conversation: bot.ConversationAccount{ID: convID},
		Text:         text,
	}
	if err := h.bot.Handle(ctx, act, out); err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Error("webchat: failed to handle message", "conversation_id", convID, "error", err)
		_ = out.send(OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
	}
}

func (h *Handler) history(ctx context.Context, convID string, limit int64) []HistoryMessage {
	msgs, err := h.bot.History(ctx, convID, limit)
	if err != nil {
		h.logger.Warn("webchat: failed to load history", "conversation_id", convID, "error", err)
		return nil
	}
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{
			Role:      m.Role,
			Text:      m.Text,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if !sessionIDPattern.MatchString(sessionID) {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	msgs, err := h.bot.History(r.Context(), ConversationID(sessionID), 100)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Text:      m.Text,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": history})
}
