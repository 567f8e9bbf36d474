package transfer

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxNameLength = 200

// SanitizeName replaces everything outside [A-Za-z0-9 _.-] with '_' and
// caps the result at 200 characters, keeping the extension.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := strings.TrimSpace(b.String())
	if s == "" {
		s = "file"
	}
	if len(s) <= maxNameLength {
		return s
	}

	ext := filepath.Ext(s)
	if len(ext) >= maxNameLength {
		return s[:maxNameLength]
	}
	return s[:maxNameLength-len(ext)] + ext
}

// ObjectKey builds user_<owner>/<unix>_<rand8>_<sanitized name>. The random
// part keeps two uploads of the same name within a second apart.
func ObjectKey(owner, name string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d_%s_%s", OwnerPrefix(owner), now.Unix(), suffix, SanitizeName(name))
}

// OwnerPrefix is the key prefix under which owner's objects live.
func OwnerPrefix(owner string) string {
	return "user_" + owner + "/"
}

// DisplayName strips the owner prefix and the timestamp/random parts from
// a key built by ObjectKey.
func DisplayName(key string) string {
	base := key
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	parts := strings.SplitN(base, "_", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return base
}

// mediaContentTypes covers extensions the platform mime table may lack.
var mediaContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := mediaContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
