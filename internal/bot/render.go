package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrijs2005/filerelay/internal/common"
	"github.com/dmitrijs2005/filerelay/internal/progress"
	"github.com/dmitrijs2005/filerelay/internal/transfer"
)

const (
	actionCopy   = "copy"
	actionInfo   = "info"
	actionDelete = "del"
)

const (
	textUnauthorized = "You are not authorized to use this bot. Ask the admin to add your user id."
	textRateLimited  = "Too many uploads. Please wait a minute and try again."
	textExpired      = "Link expired, please re-fetch."
	textHelp         = `Send me a document, video, audio file or photo and I will upload it to storage and reply with a download link.

Commands:
/list - your latest files
/delete <name> - delete one of your files
/help - this message`
	textAdminHelp = `
Admin:
/adduser <id> - allow a user
/removeuser <id> - revoke a user
/users - list allowed users`
)

func callbackData(action, token string) string {
	return action + ":" + token
}

func parseCallbackData(data string) (action, token string, ok bool) {
	action, token, ok = strings.Cut(data, ":")
	if !ok || token == "" {
		return "", "", false
	}
	switch action {
	case actionCopy, actionInfo, actionDelete:
		return action, token, true
	}
	return "", "", false
}

func startText(m media) string {
	return fmt.Sprintf("Receiving %s %q (%s)...", m.Kind, m.Name, progress.HumanBytes(m.Size))
}

func resultText(res *transfer.Result, ttl time.Duration) string {
	var b strings.Builder
	b.WriteString("Upload complete\n\n")
	fmt.Fprintf(&b, "File: %s\n", res.OriginalName)
	fmt.Fprintf(&b, "Size: %s\n", progress.HumanBytes(res.Size))
	if res.MediaType != "" {
		fmt.Fprintf(&b, "Type: %s\n", res.MediaType)
	}
	if res.PresignedURL != "" {
		fmt.Fprintf(&b, "Links expire in %s.\n", units.HumanDuration(ttl))
	}
	if res.Degraded() {
		b.WriteString("\nThe file is stored, but some links could not be created:\n")
		for _, w := range res.Warnings {
			switch {
			case errors.Is(w, common.ErrLinkMintFailed):
				b.WriteString("- download link unavailable, use Copy URL later\n")
			default:
				b.WriteString("- buttons unavailable, use /list to find the file\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func resultKeyboard(res *transfer.Result) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if res.PlayerURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Web Player", res.PlayerURL),
		))
	}
	if res.PresignedURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Direct Download", res.PresignedURL),
		))
	}
	if res.Token != "" {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Copy URL", callbackData(actionCopy, res.Token)),
				tgbotapi.NewInlineKeyboardButtonData("File Info", callbackData(actionInfo, res.Token)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Delete", callbackData(actionDelete, res.Token)),
			),
		)
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func failureText(err error, maxSize int64) string {
	switch {
	case errors.Is(err, common.ErrSizeLimitExceeded):
		return fmt.Sprintf("File is too large. The limit is %s.", progress.HumanBytes(maxSize))
	case errors.Is(err, common.ErrTransferTimeout):
		return "Transfer timed out. Please try again."
	case errors.Is(err, common.ErrDownloadFailed):
		return "Could not download the file from Telegram. Please try again."
	case errors.Is(err, common.ErrUploadFailed):
		return "Could not upload the file to storage. Please try again."
	}
	return "Transfer failed. Please try again."
}
