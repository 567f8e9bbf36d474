package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrijs2005/filerelay/internal/common"
	"github.com/dmitrijs2005/filerelay/internal/links"
	"github.com/dmitrijs2005/filerelay/internal/progress"
)

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	userID := q.From.ID

	if !b.auth.IsAllowed(userID) {
		b.answer(ctx, q, "Not authorized.")
		return
	}

	action, token, ok := parseCallbackData(q.Data)
	if !ok {
		b.answer(ctx, q, "Unknown action.")
		return
	}

	entry, err := b.callbacks.Lookup(token)
	if err != nil {
		if !errors.Is(err, common.ErrCallbackExpiredOrMissing) {
			b.log.Error(ctx, "callback lookup", "token", token, "err", err)
		}
		b.answer(ctx, q, textExpired)
		return
	}

	chatID := int64(0)
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}

	switch action {
	case actionCopy:
		u, err := b.links.Presign(ctx, entry.ObjectKey, b.opts.PresignTTL)
		if err != nil {
			b.log.Warn(ctx, "presign for copy failed", "key", entry.ObjectKey, "err", err)
			b.answer(ctx, q, "Could not create a link right now.")
			return
		}
		b.answer(ctx, q, "Link sent.")
		if chatID != 0 {
			b.reply(ctx, chatID, fmt.Sprintf("Download link for %s:\n%s", entry.OriginalName, u))
		}

	case actionInfo:
		info, err := b.objects.HeadObject(ctx, entry.ObjectKey)
		if errors.Is(err, common.ErrNotFound) {
			if err := b.callbacks.Remove(token); err != nil {
				b.log.Warn(ctx, "remove callback", "token", token, "err", err)
			}
			b.answer(ctx, q, "The file no longer exists.")
			return
		}
		if err != nil {
			b.log.Warn(ctx, "head object", "key", entry.ObjectKey, "err", err)
			b.answer(ctx, q, "Could not read file info right now.")
			return
		}
		b.answer(ctx, q, "")
		if chatID != 0 {
			b.reply(ctx, chatID, infoText(entry.OriginalName, entry.ObjectKey, info.Size, info.ContentType))
		}

	case actionDelete:
		if entry.OwnerID != strconv.FormatInt(userID, 10) && !b.auth.IsAdmin(userID) {
			b.answer(ctx, q, "Only the owner can delete this file.")
			return
		}
		if err := b.objects.DeleteObject(ctx, entry.ObjectKey); err != nil {
			b.log.Error(ctx, "delete object", "key", entry.ObjectKey, "err", err)
			b.answer(ctx, q, "Could not delete the file.")
			return
		}
		if err := b.callbacks.Remove(token); err != nil {
			b.log.Warn(ctx, "remove callback", "token", token, "err", err)
		}
		b.log.Info(ctx, "object deleted", "key", entry.ObjectKey, "user", userID)
		b.answer(ctx, q, "Deleted.")
		if chatID != 0 && q.Message != nil {
			b.edit(ctx, chatID, q.Message.MessageID, fmt.Sprintf("%s was deleted.", entry.OriginalName), nil)
		}
	}
}

func (b *Bot) answer(ctx context.Context, q *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, text)); err != nil {
		b.log.Debug(ctx, "answer callback", "err", err)
	}
}

func infoText(name, key string, size int64, contentType string) string {
	var sb strings.Builder
	sb.WriteString("File info\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", name)
	if mt := links.MediaTypeOf(key); mt != links.MediaNone {
		fmt.Fprintf(&sb, "Type: %s\n", mt)
	}
	fmt.Fprintf(&sb, "Key: %s\n", key)
	fmt.Fprintf(&sb, "Size: %s\n", progress.HumanBytes(size))
	if contentType != "" {
		fmt.Fprintf(&sb, "Content type: %s", contentType)
	}
	return strings.TrimRight(sb.String(), "\n")
}
