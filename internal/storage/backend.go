// Package storage implements the dual-backend blob store: a key-addressed
// object bucket and a chat-messaging relay, both behind small capability
// interfaces, plus the router that decides where an upload lands and the
// resolver that reconstructs bytes regardless of which backend was used.
package storage

import (
	"context"
	"io"
	"strings"
)

// ObjectStore is the key-addressed blob backend. Objects are immutable once
// written; renames are modeled as copy + delete.
type ObjectStore interface {
	// Put writes data under key with the declared content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the object body and its stored content type.
	// A miss is reported as a KindNotFound error.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Copy duplicates srcKey under dstKey.
	Copy(ctx context.Context, srcKey, dstKey string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// RelayResult identifies a blob stored through the messaging relay.
type RelayResult struct {
	// AttachmentRef is the platform-assigned file reference. It is the
	// blob_ref persisted for relay-backed files.
	AttachmentRef string
	// MessageID is the message carrying the attachment in the storage chat.
	MessageID int
}

// Relay is the chat-messaging blob backend. Attachment references are
// transient on the wire: the download path they map to expires, so it must
// be re-resolved on every access and never cached past a single request.
type Relay interface {
	// Send forwards the blob to the fixed storage destination using an
	// upload method chosen by the coarse media class.
	Send(ctx context.Context, data []byte, fileName string, class MediaClass) (RelayResult, error)
	// ResolveURL returns the current transient download URL for ref.
	ResolveURL(ctx context.Context, ref string) (string, error)
	// DeleteMessage removes the carrier message from the storage chat.
	DeleteMessage(ctx context.Context, messageID int) error
}

// MediaClass is the coarse MIME category used to pick a relay upload method.
type MediaClass string

const (
	MediaImage   MediaClass = "image"
	MediaVideo   MediaClass = "video"
	MediaAudio   MediaClass = "audio"
	MediaGeneric MediaClass = "generic"
)

// Classify maps a MIME type to its coarse media class. Anything that is not
// image, video, or audio relays as a generic document.
func Classify(mimeType string) MediaClass {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return MediaVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return MediaAudio
	default:
		return MediaGeneric
	}
}

// IsInlineMedia reports whether content of this MIME type should be served
// with Content-Disposition: inline.
func IsInlineMedia(mimeType string) bool {
	return Classify(mimeType) != MediaGeneric
}
