package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/linking"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/services"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/validation"
)

// The dispatcher depends on narrow views of its collaborators so the command
// handlers can be tested without Telegram or a database behind them.
type linkWorkflow interface {
	ConsumeAndLink(ctx context.Context, rawCode, externalChatID string, displayName *string) (*models.AccountLink, error)
	ResolveLink(ctx context.Context, externalChatID string) (*models.AccountLink, error)
	Disconnect(ctx context.Context, externalChatID string) error
}

type receiptIngestor interface {
	IngestImage(ctx context.Context, externalChatID string, image []byte, mimeType string) (*services.IngestResult, error)
}

type telegramAPI interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	GetFile(ctx context.Context, fileID string) (*File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
}

// Dispatcher routes one Telegram update to the right workflow and composes
// the reply. It holds no per-chat state: every update carries everything the
// handlers need, so any process can serve any chat.
type Dispatcher struct {
	api      telegramAPI
	links    linkWorkflow
	receipts receiptIngestor
}

// NewDispatcher creates the update dispatcher.
func NewDispatcher(api telegramAPI, links linkWorkflow, receipts receiptIngestor) *Dispatcher {
	return &Dispatcher{api: api, links: links, receipts: receipts}
}

// HandleUpdate processes a single update. Unsupported update kinds are
// acknowledged silently; Telegram retries a webhook delivery only on non-2xx,
// so the caller should stay 200 even when this returns an error.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd *Update) error {
	if upd == nil || upd.Message == nil || upd.Message.Chat == nil {
		telemetry.TelegramUpdatesTotal.WithLabelValues("other").Inc()
		return nil
	}
	msg := upd.Message
	chatKey := strconv.FormatInt(msg.Chat.ID, 10)

	switch {
	case len(msg.Photo) > 0:
		telemetry.TelegramUpdatesTotal.WithLabelValues("photo").Inc()
		return d.handlePhoto(ctx, msg, chatKey)
	case strings.HasPrefix(msg.Text, "/"):
		telemetry.TelegramUpdatesTotal.WithLabelValues("command").Inc()
		return d.handleCommand(ctx, msg, chatKey)
	case strings.TrimSpace(msg.Text) != "":
		telemetry.TelegramUpdatesTotal.WithLabelValues("text").Inc()
		return d.reply(ctx, msg,
			"Send me a photo of a receipt and I will record it, or use /help to see what I can do.")
	default:
		telemetry.TelegramUpdatesTotal.WithLabelValues("other").Inc()
		return nil
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *Message, chatKey string) error {
	fields := strings.Fields(msg.Text)
	cmd := strings.ToLower(fields[0])
	// Group chats address commands as /link@BotName.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	switch cmd {
	case "/start":
		return d.reply(ctx, msg,
			"Kumusta! I am the Kita-kita receipt bot.\n\n"+
				"Open Kita-kita on the web, generate a linking code under Settings, "+
				"then send it here with /link KITA-XXXXXX-XXXXXXX. "+
				"After that, every receipt photo you send me lands in your account.")
	case "/help":
		return d.reply(ctx, msg,
			"/link KITA-XXXXXX-XXXXXXX - connect this chat to your web account\n"+
				"/status - show whether this chat is linked\n"+
				"/unlink - disconnect this chat\n\n"+
				"Send a receipt photo any time and I will read and record it.")
	case "/link":
		if len(fields) < 2 {
			return d.reply(ctx, msg,
				"Send the code together with the command, like this: /link KITA-XXXXXX-XXXXXXX")
		}
		return d.handleLink(ctx, msg, chatKey, fields[1])
	case "/unlink":
		if err := d.links.Disconnect(ctx, chatKey); err != nil {
			slog.Error("unlink failed", "chat", chatKey, "error", err)
			return d.reply(ctx, msg, trySoonText)
		}
		return d.reply(ctx, msg, "This chat is no longer linked to a Kita-kita account.")
	case "/status":
		return d.handleStatus(ctx, msg, chatKey)
	default:
		return d.reply(ctx, msg, "I do not know that command. Use /help to see what I can do.")
	}
}

const trySoonText = "Something went wrong on our side. Please try again in a moment."

func (d *Dispatcher) handleLink(ctx context.Context, msg *Message, chatKey, rawCode string) error {
	link, err := d.links.ConsumeAndLink(ctx, rawCode, chatKey, msg.From.DisplayName())
	if err != nil {
		return d.reply(ctx, msg, linkFailureText(err))
	}

	text := "Linked! Receipts from this chat now go to your Kita-kita account."
	if link.ExternalDisplayName != nil {
		text = fmt.Sprintf("Linked! Salamat, %s. Receipts from this chat now go to your Kita-kita account.",
			*link.ExternalDisplayName)
	}
	return d.reply(ctx, msg, text)
}

// linkFailureText maps a linking failure to the reply the user reads. Each
// rejection reason gets its own wording so the user knows what to do next,
// but none of them reveals whose code it was.
func linkFailureText(err error) string {
	switch {
	case errors.Is(err, linking.ErrMalformed):
		return "That does not look like a linking code. Codes look like KITA-XXXXXX-XXXXXXX."
	case errors.Is(err, linking.ErrNotFound):
		return "I do not recognize that code. Check for typos, or generate a new one on the web."
	case errors.Is(err, linking.ErrExpired):
		return "That code has expired. Generate a fresh one on the web and send it within a few minutes."
	case errors.Is(err, linking.ErrAlreadyUsed):
		return "That code was already used. Each code works exactly once; generate a new one on the web."
	case errors.Is(err, linking.ErrAlreadyLinkedElsewhere):
		return "This chat or that account is already linked. Unlink first with /unlink, or from the web, then try again."
	default:
		return trySoonText
	}
}

func (d *Dispatcher) handleStatus(ctx context.Context, msg *Message, chatKey string) error {
	link, err := d.links.ResolveLink(ctx, chatKey)
	if err != nil {
		slog.Error("status resolve failed", "chat", chatKey, "error", err)
		return d.reply(ctx, msg, trySoonText)
	}
	if link == nil {
		return d.reply(ctx, msg,
			"This chat is not linked yet. Generate a code on the Kita-kita web app and send it with /link.")
	}
	return d.reply(ctx, msg,
		"This chat is linked to your Kita-kita account. Receipt photos you send here are recorded automatically.")
}

func (d *Dispatcher) handlePhoto(ctx context.Context, msg *Message, chatKey string) error {
	photo := LargestPhoto(msg.Photo)
	if photo == nil {
		return nil
	}

	file, err := d.api.GetFile(ctx, photo.FileID)
	if err != nil {
		slog.Error("photo metadata fetch failed", "chat", chatKey, "error", err)
		return d.reply(ctx, msg, "I could not fetch that photo from Telegram. Please send it again.")
	}
	data, err := d.api.DownloadFile(ctx, file.FilePath)
	if err != nil {
		slog.Error("photo download failed", "chat", chatKey, "error", err)
		return d.reply(ctx, msg, "I could not fetch that photo from Telegram. Please send it again.")
	}

	// Telegram re-encodes all photo uploads as JPEG.
	res, err := d.receipts.IngestImage(ctx, chatKey, data, "image/jpeg")
	if err != nil {
		slog.Error("receipt ingest failed", "chat", chatKey, "error", err)
		if errors.Is(err, linking.ErrUpstreamUnavailable) {
			return d.reply(ctx, msg, "The receipt reader is having trouble right now. Please try again in a bit.")
		}
		return d.reply(ctx, msg, trySoonText)
	}
	return d.reply(ctx, msg, receiptReplyText(res))
}

// receiptReplyText composes the confirmation for a processed photo.
func receiptReplyText(res *services.IngestResult) string {
	if res.Duplicate {
		if res.TransactionID != "" {
			return "You already sent me this receipt, and it is recorded. Nothing was added twice."
		}
		return "You already sent me this receipt. Nothing was added twice."
	}
	if res.Data == nil {
		return "I could not read this receipt. Try a sharper photo with the total visible, " +
			"or enter it manually on the web."
	}

	amount := validation.FormatAmount(res.Data.TotalMinor, res.Data.Currency)
	where := res.Data.Merchant
	if where == "" {
		where = "this receipt"
	}

	if !res.Linked() {
		return fmt.Sprintf("I read %s from %s, but this chat is not linked to a Kita-kita account, "+
			"so nothing was saved. Link first with /link and a code from the web.", amount, where)
	}
	text := fmt.Sprintf("Recorded %s at %s.", amount, where)
	if res.Data.Category != "" {
		text = fmt.Sprintf("Recorded %s at %s (%s).", amount, where, res.Data.Category)
	}
	return text
}

func (d *Dispatcher) reply(ctx context.Context, msg *Message, text string) error {
	if err := d.api.SendMessage(ctx, msg.Chat.ID, text); err != nil {
		slog.Error("telegram reply failed", "chat", msg.Chat.ID, "error", err)
		return err
	}
	return nil
}
