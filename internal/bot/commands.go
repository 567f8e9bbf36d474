package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrijs2005/filerelay/internal/auth"
	"github.com/dmitrijs2005/filerelay/internal/progress"
	"github.com/dmitrijs2005/filerelay/internal/transfer"
)

const listLimit = 15

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	cmd := msg.Command()

	switch cmd {
	case "start", "help":
		if !b.auth.IsAllowed(userID) {
			b.reply(ctx, chatID, textUnauthorized+fmt.Sprintf("\nYour id: %d", userID))
			return
		}
		text := textHelp
		if b.auth.IsAdmin(userID) {
			text += "\n" + textAdminHelp
		}
		b.reply(ctx, chatID, text)
		return
	}

	if !b.auth.IsAllowed(userID) {
		b.reply(ctx, chatID, textUnauthorized)
		return
	}

	switch cmd {
	case "list":
		b.cmdList(ctx, chatID, userID)
	case "delete":
		b.cmdDelete(ctx, chatID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "adduser", "removeuser", "users":
		if !b.auth.IsAdmin(userID) {
			b.reply(ctx, chatID, "This command is for the admin only.")
			return
		}
		b.cmdAdmin(ctx, chatID, cmd, strings.TrimSpace(msg.CommandArguments()))
	default:
		b.reply(ctx, chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) cmdList(ctx context.Context, chatID, userID int64) {
	objs, err := b.objects.ListObjects(ctx, transfer.OwnerPrefix(strconv.FormatInt(userID, 10)), listLimit)
	if err != nil {
		b.log.Error(ctx, "list objects", "user", userID, "err", err)
		b.reply(ctx, chatID, "Could not list your files right now.")
		return
	}
	if len(objs) == 0 {
		b.reply(ctx, chatID, "You have no stored files.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your files (%d):\n", len(objs))
	for i, o := range objs {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, transfer.DisplayName(o.Key), progress.HumanBytes(o.Size))
	}
	b.reply(ctx, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) cmdDelete(ctx context.Context, chatID, userID int64, name string) {
	if name == "" {
		b.reply(ctx, chatID, "Usage: /delete <name>")
		return
	}

	prefix := transfer.OwnerPrefix(strconv.FormatInt(userID, 10))
	objs, err := b.objects.ListObjects(ctx, prefix, 0)
	if err != nil {
		b.log.Error(ctx, "list objects", "user", userID, "err", err)
		b.reply(ctx, chatID, "Could not look up your files right now.")
		return
	}

	for _, o := range objs {
		if transfer.DisplayName(o.Key) != name && strings.TrimPrefix(o.Key, prefix) != name {
			continue
		}
		if err := b.objects.DeleteObject(ctx, o.Key); err != nil {
			b.log.Error(ctx, "delete object", "key", o.Key, "err", err)
			b.reply(ctx, chatID, "Could not delete the file.")
			return
		}
		b.log.Info(ctx, "object deleted by command", "key", o.Key, "user", userID)
		b.reply(ctx, chatID, fmt.Sprintf("Deleted %s.", name))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("No file named %q. Use /list to see your files.", name))
}

func (b *Bot) cmdAdmin(ctx context.Context, chatID int64, cmd, arg string) {
	if cmd == "users" {
		ids := b.auth.List()
		var sb strings.Builder
		fmt.Fprintf(&sb, "Authorized users (%d):\n", len(ids))
		for _, id := range ids {
			fmt.Fprintf(&sb, "- %d\n", id)
		}
		b.reply(ctx, chatID, strings.TrimRight(sb.String(), "\n"))
		return
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("Usage: /%s <user id>", cmd))
		return
	}

	switch cmd {
	case "adduser":
		err = b.auth.Add(id)
	case "removeuser":
		err = b.auth.Remove(id)
	}
	switch {
	case errors.Is(err, auth.ErrAdminImmutable):
		b.reply(ctx, chatID, "The admin cannot be removed.")
	case err != nil:
		b.log.Error(ctx, "update allow-list", "cmd", cmd, "id", id, "err", err)
		b.reply(ctx, chatID, "Could not update the allow-list.")
	case cmd == "adduser":
		b.reply(ctx, chatID, fmt.Sprintf("User %d can now use the bot.", id))
	default:
		b.reply(ctx, chatID, fmt.Sprintf("User %d has been removed.", id))
	}
}
