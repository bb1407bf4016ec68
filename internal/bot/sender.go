// Package bot drives the chat interface: a per-chat conversational state
// machine for multi-turn configuration, the status panel it keeps
// re-rendering, and the thin adapter over the messaging platform.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Sender is the outbound chat surface the engine needs. Abstracting it
// keeps the state machine testable without a live bot connection.
type Sender interface {
	// SendText sends a message, optionally with an inline keyboard, and
	// returns the new message id.
	SendText(ctx context.Context, chatID int64, text string, kb models.ReplyMarkup) (int, error)
	// EditText replaces the text (and keyboard) of an existing message.
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb models.ReplyMarkup) error
	// AnswerCallback acknowledges a callback query so the client stops
	// showing a spinner.
	AnswerCallback(ctx context.Context, callbackID string) error
	// Download fetches the bytes of a platform file by its file id and
	// returns them with the platform-side file path.
	Download(ctx context.Context, fileID string) ([]byte, string, error)
}

// TelegramSender implements Sender on a live bot connection.
type TelegramSender struct {
	B *tg.Bot
}

// SendText sends a plain-text message with an optional inline keyboard.
func (s *TelegramSender) SendText(ctx context.Context, chatID int64, text string, kb models.ReplyMarkup) (int, error) {
	params := &tg.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	msg, err := s.B.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.ID, nil
}

// EditText edits a previously sent message in place.
func (s *TelegramSender) EditText(ctx context.Context, chatID int64, messageID int, text string, kb models.ReplyMarkup) error {
	params := &tg.EditMessageTextParams{ChatID: chatID, MessageID: messageID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := s.B.EditMessageText(ctx, params); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query.
func (s *TelegramSender) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := s.B.AnswerCallbackQuery(ctx, &tg.AnswerCallbackQueryParams{CallbackQueryID: callbackID})
	return err
}

// Download fetches a platform file by id.
func (s *TelegramSender) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	f, err := s.B.GetFile(ctx, &tg.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.B.FileDownloadLink(f), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file data: %w", err)
	}
	return data, f.FilePath, nil
}
