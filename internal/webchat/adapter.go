package webchat

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/dental-assistant-bot/internal/bot"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// sessionEmitter implements bot.Emitter for one WebSocket connection.
type sessionEmitter struct {
	conn   *websocket.Conn
	logger *logging.Logger
}

func newSessionEmitter(conn *websocket.Conn, logger *logging.Logger) *sessionEmitter {
	return &sessionEmitter{conn: conn, logger: logger}
}

// Emit pushes a bot reply to the visitor.
func (e *sessionEmitter) Emit(ctx context.Context, reply bot.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts := reply.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	if err := e.send(OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      reply.Text,
		Timestamp: ts,
	}); err != nil {
		return fmt.Errorf("webchat: send reply: %w", err)
	}
	e.logger.Info("webchat: reply sent",
		"conversation_id", reply.Conversation.ID,
		"reply_to", reply.ReplyToID,
		"length", len(reply.Text),
	)
	return nil
}

func (e *sessionEmitter) send(msg OutboundMessage) error {
	return websocket.JSON.Send(e.conn, msg)
}
