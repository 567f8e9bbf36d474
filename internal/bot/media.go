package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type mediaKind int

const (
	kindDocument mediaKind = iota
	kindVideo
	kindAudio
	kindPhoto
)

func (k mediaKind) String() string {
	switch k {
	case kindDocument:
		return "document"
	case kindVideo:
		return "video"
	case kindAudio:
		return "audio"
	case kindPhoto:
		return "photo"
	}
	return "unknown"
}

// media is an inbound file resolved once from whichever field of the
// message carries it.
type media struct {
	Kind   mediaKind
	FileID string
	Name   string
	Size   int64
}

func resolveMedia(msg *tgbotapi.Message, now time.Time) (media, bool) {
	ts := now.Unix()
	switch {
	case msg.Document != nil:
		d := msg.Document
		return media{kindDocument, d.FileID, nameOr(d.FileName, fmt.Sprintf("document_%d", ts)), int64(d.FileSize)}, true
	case msg.Video != nil:
		v := msg.Video
		return media{kindVideo, v.FileID, nameOr(v.FileName, fmt.Sprintf("video_%d.mp4", ts)), int64(v.FileSize)}, true
	case msg.Audio != nil:
		a := msg.Audio
		fallback := fmt.Sprintf("audio_%d.mp3", ts)
		if a.Title != "" {
			fallback = a.Title + ".mp3"
		}
		return media{kindAudio, a.FileID, nameOr(a.FileName, fallback), int64(a.FileSize)}, true
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > best.FileSize || (p.FileSize == best.FileSize && p.Width*p.Height > best.Width*best.Height) {
				best = p
			}
		}
		return media{kindPhoto, best.FileID, fmt.Sprintf("photo_%d.jpg", ts), int64(best.FileSize)}, true
	}
	return media{}, false
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
