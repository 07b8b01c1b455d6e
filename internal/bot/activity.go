// Package bot turns inbound channel activities into routed replies and
// greetings, one turn at a time per conversation.
package bot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Activity types handled by the bot.
const (
	TypeMessage            = "message"
	TypeConversationUpdate = "conversationUpdate"
)

// ChannelAccount identifies a participant.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies a conversation.
type ConversationAccount struct {
	ID string `json:"id"`
}

// Activity is the Bot Framework shaped envelope used on every channel.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Timestamp    string              `json:"timestamp,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	Text         string              `json:"text,omitempty"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
}

// Emitter delivers an outbound activity to the channel.
type Emitter interface {
	Emit(ctx context.Context, reply Activity) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, reply Activity) error

func (f EmitterFunc) Emit(ctx context.Context, reply Activity) error { return f(ctx, reply) }

// Collector buffers replies for transports that answer inline.
type Collector struct {
	Replies []Activity
}

func (c *Collector) Emit(_ context.Context, reply Activity) error {
	c.Replies = append(c.Replies, reply)
	return nil
}

func newReply(in Activity, from, to ChannelAccount, text string, now time.Time) Activity {
	return Activity{
		Type:         TypeMessage,
		ID:           uuid.NewString(),
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
		ChannelID:    in.ChannelID,
		From:         from,
		Recipient:    to,
		Conversation: in.Conversation,
		Text:         text,
		ReplyToID:    in.ID,
	}
}
