// Package links mints the download and player URLs handed to users.
package links

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/filerelay/internal/common"
)

// MediaType tags player URLs so the web renderer picks the right element.
type MediaType string

const (
	MediaNone  MediaType = ""
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaImage MediaType = "image"
)

var mediaExtensions = map[string]MediaType{
	".mp4": MediaVideo, ".mkv": MediaVideo, ".avi": MediaVideo, ".mov": MediaVideo,
	".wmv": MediaVideo, ".flv": MediaVideo, ".webm": MediaVideo, ".m4v": MediaVideo,
	".3gp": MediaVideo, ".mpeg": MediaVideo, ".mpg": MediaVideo, ".ts": MediaVideo,

	".mp3": MediaAudio, ".m4a": MediaAudio, ".flac": MediaAudio, ".wav": MediaAudio,
	".aac": MediaAudio, ".ogg": MediaAudio, ".wma": MediaAudio,

	".jpg": MediaImage, ".jpeg": MediaImage, ".png": MediaImage, ".gif": MediaImage,
	".bmp": MediaImage, ".webp": MediaImage,
}

// ParseMediaType accepts the path segment of a player URL.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(s) {
	case MediaVideo, MediaAudio, MediaImage:
		return MediaType(s), true
	}
	return MediaNone, false
}

// MediaTypeOf classifies a key or file name by its extension.
func MediaTypeOf(name string) MediaType {
	return mediaExtensions[strings.ToLower(path.Ext(name))]
}

type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Minter struct {
	presigner Presigner
	baseURL   string
}

// NewMinter returns a minter. An empty playerBaseURL disables player links.
func NewMinter(p Presigner, playerBaseURL string) *Minter {
	return &Minter{presigner: p, baseURL: strings.TrimRight(playerBaseURL, "/")}
}

// Presign returns a time-limited retrieval URL. Failures wrap
// common.ErrLinkMintFailed.
func (m *Minter) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: non-positive ttl %s", common.ErrLinkMintFailed, ttl)
	}
	u, err := m.presigner.PresignGet(ctx, key, ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrLinkMintFailed, err)
	}
	if u == "" {
		return "", fmt.Errorf("%w: empty url for %s", common.ErrLinkMintFailed, key)
	}
	return u, nil
}

// PlayerURL wraps presigned in a player page link. ok is false when the key
// is not a known media type, no player base URL is configured, or there is
// no presigned URL to wrap.
func (m *Minter) PlayerURL(key, presigned string) (string, bool) {
	mt := MediaTypeOf(key)
	if mt == MediaNone || m.baseURL == "" || presigned == "" {
		return "", false
	}
	return fmt.Sprintf("%s/player/%s/%s", m.baseURL, mt, EncodeURL(presigned)), true
}

// EncodeURL is unpadded base64url, safe inside a single path segment.
func EncodeURL(u string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(u))
}

var ErrBadPlayerURL = errors.New("bad player url")

// DecodeURL reverses EncodeURL and only accepts absolute http(s) URLs.
// Padded input is tolerated.
func DecodeURL(enc string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(enc, "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPlayerURL, err)
	}
	u, err := url.Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPlayerURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: unsupported url %q", ErrBadPlayerURL, u.Redacted())
	}
	return string(raw), nil
}
