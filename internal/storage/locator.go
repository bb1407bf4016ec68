package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// Well-known extensions for common upload types. mime.ExtensionsByType is
// consulted next, but its first pick for image/jpeg is ".jpe" on some
// platforms, so the usual suspects are pinned here.
var preferredExt = map[string]string{
	"image/jpeg":       "jpg",
	"image/png":        "png",
	"image/gif":        "gif",
	"image/webp":       "webp",
	"video/mp4":        "mp4",
	"audio/mpeg":       "mp3",
	"application/pdf":  "pdf",
	"text/plain":       "txt",
	"application/zip":  "zip",
	"application/json": "json",
}

// ExtensionFor derives a file extension from the declared MIME type,
// falling back to the original file name, then to "bin".
func ExtensionFor(mimeType, fileName string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if ext, ok := preferredExt[mt]; ok {
		return ext
	}
	if mt != "" {
		if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	if ext := strings.TrimPrefix(path.Ext(fileName), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "bin"
}

// BuildKey generates the canonical storage key: either the uploader's
// custom suffix or a millisecond timestamp, followed by the derived
// extension. The timestamp is the only uniqueness mechanism; a custom
// suffix deliberately overwrites earlier uploads with the same suffix.
func BuildKey(suffix *string, mimeType, fileName string) string {
	stem := fmt.Sprintf("%d", time.Now().UnixMilli())
	if suffix != nil && strings.TrimSpace(*suffix) != "" {
		stem = strings.TrimSpace(*suffix)
	}
	return stem + "." + ExtensionFor(mimeType, fileName)
}

// KeyWithSuffix rebuilds an existing key around a new suffix, keeping the
// original extension. Used by the suffix-rename operation.
func KeyWithSuffix(oldKey, suffix string) string {
	ext := strings.TrimPrefix(path.Ext(oldKey), ".")
	if ext == "" {
		ext = "bin"
	}
	return strings.TrimSpace(suffix) + "." + ext
}

// LocatorFor joins the public base URL and a key into the canonical locator.
func LocatorFor(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}
