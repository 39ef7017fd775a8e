package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/stowage/internal/config"
	"github.com/semmidev/stowage/internal/domain"
)

// maxListedFailures caps how many failed files a summary names.
const maxListedFailures = 10

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    Sender
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) NotifyRun(ctx context.Context, summary domain.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(summary))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}

	return nil
}

func FormatSummary(s domain.RunSummary) string {
	var b strings.Builder

	if s.Stats.Fail == 0 {
		fmt.Fprintf(&b, "✅ Upload Completed\n\n")
	} else {
		fmt.Fprintf(&b, "⚠️ Upload Completed With Failures\n\n")
	}

	fmt.Fprintf(&b, "📦 %s → %s\n", s.Name, s.Bucket)
	fmt.Fprintf(&b, "📊 Total: %d, Success: %d, Fail: %d\n", s.Stats.Total, s.Stats.Success, s.Stats.Fail)
	fmt.Fprintf(&b, "⏱ Duration: %s", s.Duration.Round(time.Millisecond))

	if len(s.Report.Fail) > 0 {
		b.WriteString("\n\n❌ Failed:")
		for i, f := range s.Report.Fail {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "\n… and %d more", len(s.Report.Fail)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "\n- %s: %s", f.Key, f.Msg)
		}
	}

	return b.String()
}
