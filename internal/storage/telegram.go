package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/filedock/go-file-backend/internal/domain"
)

// TelegramRelay implements Relay by parking blobs as attachments in a fixed
// storage chat. The attachment's file id becomes the blob reference; the
// carrier message id is kept so the blob can later be removed.
type TelegramRelay struct {
	b      *bot.Bot
	chatID int64
}

// NewTelegramRelay binds the relay to its storage chat.
func NewTelegramRelay(b *bot.Bot, storageChatID int64) *TelegramRelay {
	return &TelegramRelay{b: b, chatID: storageChatID}
}

// Send forwards the blob using the upload method matching its media class
// and captures the platform-assigned attachment reference and message id.
// A response missing either is a distinct upstream failure: the blob may
// exist on the platform but can never be retrieved again.
func (r *TelegramRelay) Send(ctx context.Context, data []byte, fileName string, class MediaClass) (RelayResult, error) {
	upload := &models.InputFileUpload{Filename: fileName, Data: bytes.NewReader(data)}

	var (
		msg *models.Message
		err error
	)
	switch class {
	case MediaImage:
		msg, err = r.b.SendPhoto(ctx, &bot.SendPhotoParams{ChatID: r.chatID, Photo: upload})
	case MediaVideo:
		msg, err = r.b.SendVideo(ctx, &bot.SendVideoParams{ChatID: r.chatID, Video: upload})
	case MediaAudio:
		msg, err = r.b.SendAudio(ctx, &bot.SendAudioParams{ChatID: r.chatID, Audio: upload})
	default:
		msg, err = r.b.SendDocument(ctx, &bot.SendDocumentParams{ChatID: r.chatID, Document: upload})
	}
	if err != nil {
		return RelayResult{}, domain.E(domain.KindUpstream, fmt.Sprintf("relay send %s", class), err)
	}

	ref := attachmentRef(msg)
	if ref == "" {
		return RelayResult{}, domain.Ef(domain.KindUpstream, "relay response for %s carries no attachment reference", fileName)
	}
	if msg.ID == 0 {
		return RelayResult{}, domain.Ef(domain.KindUpstream, "relay response for %s carries no message id", fileName)
	}
	return RelayResult{AttachmentRef: ref, MessageID: msg.ID}, nil
}

// ResolveURL re-resolves the current transient download path for ref at
// request time. The result expires and must never be stored.
func (r *TelegramRelay) ResolveURL(ctx context.Context, ref string) (string, error) {
	f, err := r.b.GetFile(ctx, &bot.GetFileParams{FileID: ref})
	if err != nil {
		return "", domain.E(domain.KindUpstream, "relay resolve file path", err)
	}
	return r.b.FileDownloadLink(f), nil
}

// DeleteMessage removes the carrier message from the storage chat.
func (r *TelegramRelay) DeleteMessage(ctx context.Context, messageID int) error {
	_, err := r.b.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    r.chatID,
		MessageID: messageID,
	})
	if err != nil {
		return domain.E(domain.KindUpstream, "relay delete message", err)
	}
	return nil
}

// attachmentRef extracts the file id from whichever attachment slot the
// platform populated. Photos come back as a size ladder; the largest
// rendition is the last entry.
func attachmentRef(msg *models.Message) string {
	if msg == nil {
		return ""
	}
	switch {
	case msg.Document != nil:
		return msg.Document.FileID
	case len(msg.Photo) > 0:
		return msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Audio != nil:
		return msg.Audio.FileID
	}
	return ""
}
