// Package domain defines the persistence models for categories, per-chat
// user settings, and stored file records. These types are mapped with GORM
// and form the metadata layer that both storage backends hang off of.
package domain

import (
	"time"
)

// StorageType selects which blob backend holds the bytes of a file.
// A FileRecord's BlobRef is only meaningful together with its StorageType:
// for the object backend it is an object key, for the relay backend it is
// the attachment reference handed out by the messaging platform.
type StorageType string

const (
	// StorageObject stores blobs in the S3-compatible object bucket.
	StorageObject StorageType = "object"
	// StorageRelay stores blobs by forwarding them through the chat
	// messaging API and keeping the resulting attachment reference.
	StorageRelay StorageType = "relay"
)

// Valid reports whether t is one of the two known backends.
func (t StorageType) Valid() bool {
	return t == StorageObject || t == StorageRelay
}

// WaitingState is the per-chat conversational state. It drives which
// meaning the next free-text message from that chat carries.
type WaitingState string

const (
	// WaitingNone means the next text message has no special meaning.
	WaitingNone WaitingState = "none"
	// WaitingCategoryName means the next text message names a new category.
	WaitingCategoryName WaitingState = "category_name"
	// WaitingSuffix means the next text message sets the custom suffix.
	WaitingSuffix WaitingState = "suffix"
)

// Category groups uploaded files. A "default" category is guaranteed to
// exist after schema healing. Deleting a category nulls out references on
// files and user settings; dependents are never cascade-deleted.
type Category struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// UserSetting holds one row per chat: the chat's preferred storage backend,
// its active category, an optional custom locator suffix, and the
// conversational waiting state. Rows are created on first contact
// (upsert-on-read) and mutated by every state transition and upload.
type UserSetting struct {
	ID           uint         `json:"id"            gorm:"primaryKey"`
	ChatID       int64        `json:"chat_id"       gorm:"not null;uniqueIndex"`
	StorageType  StorageType  `json:"storage_type"  gorm:"type:varchar(16);not null;default:'object'"`
	CategoryID   *uint        `json:"category_id"`
	CustomSuffix *string      `json:"custom_suffix" gorm:"type:varchar(128)"`
	WaitingFor   WaitingState `json:"waiting_for"   gorm:"type:varchar(32);not null;default:'none'"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TableName returns the database table name for UserSetting.
func (UserSetting) TableName() string { return "user_settings" }

// FileRecord is the metadata row written at the end of a successful upload.
//
// Fields:
//   - URL: the canonical public locator (base URL + generated key).
//   - BlobRef: backend-specific identifier; read together with StorageType.
//   - RelayMessageID: message id on the relay backend, 0 for object blobs.
//   - CustomSuffix: the suffix used for the locator, when one was set.
//
// URL uniqueness is a best-effort property of the millisecond-timestamp
// generation scheme and is not enforced by the database.
type FileRecord struct {
	ID             uint        `json:"id"               gorm:"primaryKey"`
	URL            string      `json:"url"              gorm:"type:text;not null;index"`
	BlobRef        string      `json:"blob_ref"         gorm:"type:text;not null;index"`
	RelayMessageID int         `json:"relay_message_id" gorm:"not null;default:0"`
	CreatedAt      time.Time   `json:"created_at"`
	FileName       string      `json:"file_name"        gorm:"type:text;index"`
	FileSize       int64       `json:"file_size"`
	MimeType       string      `json:"mime_type"        gorm:"type:varchar(255)"`
	UploaderChatID int64       `json:"uploader_chat_id"`
	StorageType    StorageType `json:"storage_type"     gorm:"type:varchar(16);not null"`
	CategoryID     *uint       `json:"category_id"`
	CustomSuffix   *string     `json:"custom_suffix"    gorm:"type:varchar(128)"`
}

// TableName returns the database table name for FileRecord.
func (FileRecord) TableName() string { return "files" }
