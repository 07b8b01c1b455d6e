// Command console chats with the bot from a terminal, the same way a channel
// would: it greets on start and answers each line as one message activity.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-assistant-bot/cmd/mainconfig"
	"github.com/wolfman30/dental-assistant-bot/internal/app/bootstrap"
	"github.com/wolfman30/dental-assistant-bot/internal/bot"
	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const consoleChannel = "console"

type activityHandler interface {
	Account() bot.ChannelAccount
	Handle(ctx context.Context, act bot.Activity, out bot.Emitter) error
}

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, logging.FormatColor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	rt, err := bootstrap.BuildRuntime(ctx, cfg, awsCfg, nil, logger)
	if err != nil {
		logger.Error("failed to build bot runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	if err := run(ctx, rt.Bot, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("console session failed", "error", err)
		os.Exit(1)
	}
}

// run greets the user and then routes every non-empty input line until EOF
// or "quit".
func run(ctx context.Context, b activityHandler, in io.Reader, out io.Writer) error {
	convID := consoleChannel + ":" + uuid.NewString()
	user := bot.ChannelAccount{ID: "console-user", Name: "You"}
	conv := bot.ConversationAccount{ID: convID}
	printer := bot.EmitterFunc(func(_ context.Context, reply bot.Activity) error {
		_, err := fmt.Fprintf(out, "bot> %s\n", reply.Text)
		return err
	})

	err := b.Handle(ctx, bot.Activity{
		Type:         bot.TypeConversationUpdate,
		ID:           uuid.NewString(),
		ChannelID:    consoleChannel,
		From:         user,
		Recipient:    b.Account(),
		Conversation: conv,
		MembersAdded: []bot.ChannelAccount{b.Account(), user},
	}, printer)
	if err != nil {
		return fmt.Errorf("console: greet: %w", err)
	}

	scanner := bufio.NewScanner(in)
	for {
		if _, err := fmt.Fprint(out, "you> "); err != nil {
			return err
		}
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "quit") || strings.EqualFold(text, "exit") {
			break
		}
		err := b.Handle(ctx, bot.Activity{
			Type:         bot.TypeMessage,
			ID:           uuid.NewString(),
			ChannelID:    consoleChannel,
			From:         user,
			Recipient:    b.Account(),
			Conversation: conv,
			Text:         text,
		}, printer)
		if err != nil {
			return fmt.Errorf("console: handle message: %w", err)
		}
	}
	_, _ = fmt.Fprintln(out)
	return scanner.Err()
}
