package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/filedock/go-file-backend/internal/domain"
	"github.com/filedock/go-file-backend/internal/repo"
	"github.com/filedock/go-file-backend/internal/services"
)

// Engine is the per-chat conversational state machine. The state lives on
// the chat's UserSetting row (waiting_for), so the engine itself is
// stateless and safe under concurrent webhook deliveries; racing updates
// to the same chat resolve by last-write-wins.
//
// Transition table:
//
//	any state            + "create category" button -> prompt, AwaitingCategoryName
//	AwaitingCategoryName + text                     -> create or warn,   None
//	any state            + "set suffix" button      -> prompt, AwaitingSuffix
//	AwaitingSuffix       + text                     -> persist suffix,   None
//	any state            + storage/category/close   -> apply immediately, unchanged
type Engine struct {
	DB             *gorm.DB
	Sender         Sender
	Uploads        *services.UploadService
	Categories     *services.CategoryService
	DefaultStorage domain.StorageType
	MaxUploadBytes int64
	// ObjectEnabled gates the storage toggle when no bucket is bound.
	ObjectEnabled bool
	Log           zerolog.Logger
}

// HandleUpdate interprets one webhook update. It never returns an error:
// internal failures are logged and reported to the end user as a chat
// message, so the webhook acknowledgement is never affected.
func (e *Engine) HandleUpdate(ctx context.Context, upd *models.Update) {
	switch {
	case upd == nil:
		return
	case upd.CallbackQuery != nil:
		e.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		e.handleMessage(ctx, upd.Message)
	}
}

// handleMessage routes an inbound message: attachments become uploads,
// text feeds the waiting-state machine.
func (e *Engine) handleMessage(ctx context.Context, msg *models.Message) {
	chatID := msg.Chat.ID

	// Every inbound event ensures the settings row exists before any
	// transition logic runs.
	setting, err := repo.EnsureSetting(ctx, e.DB, chatID, e.DefaultStorage)
	if err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("ensure settings row")
		e.reply(ctx, chatID, "Something went wrong, please try again.")
		return
	}

	if ref, name, mime := attachment(msg); ref != "" {
		e.handleFile(ctx, chatID, ref, name, mime)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch setting.WaitingFor {
	case domain.WaitingCategoryName:
		e.finishCategoryName(ctx, chatID, text)
	case domain.WaitingSuffix:
		e.finishSuffix(ctx, chatID, text)
	default:
		if text == "/start" || text == "/settings" {
			e.sendPanel(ctx, chatID)
		}
	}
}

// handleCallback routes a panel button press. The buttons that mutate
// settings apply immediately, independent of the waiting state.
func (e *Engine) handleCallback(ctx context.Context, q *models.CallbackQuery) {
	if q.Message.Message == nil {
		return
	}
	chatID := q.Message.Message.Chat.ID
	messageID := q.Message.Message.ID

	if err := e.Sender.AnswerCallback(ctx, q.ID); err != nil {
		e.Log.Warn().Err(err).Msg("answer callback query")
	}

	setting, err := repo.EnsureSetting(ctx, e.DB, chatID, e.DefaultStorage)
	if err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("ensure settings row")
		return
	}

	data := q.Data
	switch {
	case data == cbCreateCategory:
		if err := repo.UpdateWaiting(ctx, e.DB, chatID, domain.WaitingCategoryName); err != nil {
			e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("set waiting state")
			return
		}
		e.reply(ctx, chatID, "Send the name for the new category.")

	case data == cbSetSuffix:
		if err := repo.UpdateWaiting(ctx, e.DB, chatID, domain.WaitingSuffix); err != nil {
			e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("set waiting state")
			return
		}
		e.reply(ctx, chatID, "Reply with the suffix for your links, or \"none\" to clear it.")

	case data == cbSwitchStorage:
		next := domain.StorageRelay
		if setting.StorageType == domain.StorageRelay && e.ObjectEnabled {
			next = domain.StorageObject
		}
		if err := repo.UpdateStorageType(ctx, e.DB, chatID, next); err != nil {
			e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("switch storage")
			return
		}
		e.editPanel(ctx, chatID, messageID)

	case data == cbSelectCategory:
		cats, err := e.Categories.List(ctx)
		if err != nil {
			e.Log.Error().Err(err).Msg("list categories")
			return
		}
		if err := e.Sender.EditText(ctx, chatID, messageID, "Pick a category:", categoryKeyboard(cats)); err != nil {
			e.Log.Warn().Err(err).Msg("show category picker")
		}

	case strings.HasPrefix(data, cbPickCategory):
		id, err := strconv.ParseUint(strings.TrimPrefix(data, cbPickCategory), 10, 32)
		if err != nil {
			return
		}
		cid := uint(id)
		if err := repo.UpdateCategoryRef(ctx, e.DB, chatID, &cid); err != nil {
			e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("set category")
			return
		}
		e.editPanel(ctx, chatID, messageID)

	case data == cbClose:
		// Only the triggering message changes; waiting_for is untouched.
		if err := e.Sender.EditText(ctx, chatID, messageID, "Settings closed.", nil); err != nil {
			e.Log.Warn().Err(err).Msg("close panel")
		}
	}
}

// finishCategoryName completes the AwaitingCategoryName transition. The
// chat lands back in the idle state whether the name was usable or not;
// retrying starts over from the panel button.
func (e *Engine) finishCategoryName(ctx context.Context, chatID int64, name string) {
	if err := repo.UpdateWaiting(ctx, e.DB, chatID, domain.WaitingNone); err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("reset waiting state")
	}

	cat, err := e.Categories.Create(ctx, name)
	switch {
	case errors.Is(err, services.ErrCategoryExists):
		e.reply(ctx, chatID, "A category with that name already exists. Use the panel to try another name.")
		return
	case errors.Is(err, services.ErrEmptyCategoryName):
		e.reply(ctx, chatID, "The category name cannot be empty. Use the panel to try again.")
		return
	case err != nil:
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("create category")
		e.reply(ctx, chatID, "Could not create the category, please try again.")
		return
	}

	if err := repo.UpdateCategoryRef(ctx, e.DB, chatID, &cat.ID); err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("activate created category")
	}
	e.reply(ctx, chatID, "Category \""+cat.Name+"\" created and selected.")
	e.sendPanel(ctx, chatID)
}

// finishSuffix completes the AwaitingSuffix transition. "none" and "无"
// clear the suffix.
func (e *Engine) finishSuffix(ctx context.Context, chatID int64, text string) {
	var suffix *string
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized != "none" && normalized != "无" {
		trimmed := strings.TrimSpace(text)
		suffix = &trimmed
	}

	if err := repo.UpdateSuffix(ctx, e.DB, chatID, suffix); err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("persist suffix")
		e.reply(ctx, chatID, "Could not save the suffix, please try again.")
		return
	}
	if err := repo.UpdateWaiting(ctx, e.DB, chatID, domain.WaitingNone); err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("reset waiting state")
	}

	if suffix == nil {
		e.reply(ctx, chatID, "Suffix cleared; links use timestamps again.")
	} else {
		e.reply(ctx, chatID, "Suffix saved. New uploads overwrite the previous one under this suffix.")
	}
	e.sendPanel(ctx, chatID)
}

// handleFile stores an attachment the chat sent to the bot and replies
// with the public locator.
func (e *Engine) handleFile(ctx context.Context, chatID int64, fileID, fileName, mimeType string) {
	data, filePath, err := e.Sender.Download(ctx, fileID)
	if err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("download attachment")
		e.reply(ctx, chatID, "Could not read that file from the chat, please resend it.")
		return
	}
	if fileName == "" {
		fileName = lastSegment(filePath)
	}

	rec, err := e.Uploads.Upload(ctx, services.UploadInput{
		Data:     data,
		FileName: fileName,
		MimeType: mimeType,
		ChatID:   chatID,
	})
	switch {
	case errors.Is(err, services.ErrUploadTooLarge):
		e.reply(ctx, chatID, "That file is over the size limit of "+humanSize(e.MaxUploadBytes)+".")
		return
	case err != nil:
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("store attachment")
		e.reply(ctx, chatID, "Upload failed, please try again.")
		return
	}

	e.reply(ctx, chatID, "Uploaded: "+rec.URL)
}

// sendPanel sends a fresh status panel reflecting persisted state.
func (e *Engine) sendPanel(ctx context.Context, chatID int64) {
	text, kb, err := e.buildPanel(ctx, chatID)
	if err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("render panel")
		return
	}
	if _, err := e.Sender.SendText(ctx, chatID, text, kb); err != nil {
		e.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("send panel")
	}
}

// editPanel re-renders the panel into an existing message.
func (e *Engine) editPanel(ctx context.Context, chatID int64, messageID int) {
	text, kb, err := e.buildPanel(ctx, chatID)
	if err != nil {
		e.Log.Error().Err(err).Int64("chat_id", chatID).Msg("render panel")
		return
	}
	if err := e.Sender.EditText(ctx, chatID, messageID, text, kb); err != nil {
		e.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("edit panel")
	}
}

// buildPanel re-reads the settings row so the panel always shows what is
// actually persisted, not what this invocation thinks it wrote.
func (e *Engine) buildPanel(ctx context.Context, chatID int64) (string, *models.InlineKeyboardMarkup, error) {
	setting, err := repo.EnsureSetting(ctx, e.DB, chatID, e.DefaultStorage)
	if err != nil {
		return "", nil, err
	}
	categoryName := ""
	if setting.CategoryID != nil {
		if cat, err := e.Categories.Get(ctx, *setting.CategoryID); err == nil {
			categoryName = cat.Name
		}
	}
	return renderPanel(setting, categoryName, e.MaxUploadBytes), panelKeyboard(), nil
}

// reply sends a short plain-text message, logging failures.
func (e *Engine) reply(ctx context.Context, chatID int64, text string) {
	if _, err := e.Sender.SendText(ctx, chatID, text, nil); err != nil {
		e.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("send reply")
	}
}

// attachment extracts the file reference, name, and MIME type from
// whichever attachment slot the message populated. Photos come back as a
// size ladder; the largest rendition is the last entry.
func attachment(msg *models.Message) (fileID, fileName, mimeType string) {
	switch {
	case msg.Document != nil:
		return msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType
	case len(msg.Photo) > 0:
		return msg.Photo[len(msg.Photo)-1].FileID, "", "image/jpeg"
	case msg.Video != nil:
		return msg.Video.FileID, msg.Video.FileName, msg.Video.MimeType
	case msg.Audio != nil:
		return msg.Audio.FileID, msg.Audio.FileName, msg.Audio.MimeType
	}
	return "", "", ""
}

// lastSegment returns the final path segment of a platform file path.
func lastSegment(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
