package bot

import (
	"fmt"

	"github.com/go-telegram/bot/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/filedock/go-file-backend/internal/domain"
)

// Callback data for the panel buttons. The engine's transition table keys
// off these values.
const (
	cbCreateCategory = "create_category"
	cbSetSuffix      = "set_suffix"
	cbSwitchStorage  = "switch_storage"
	cbSelectCategory = "select_category"
	cbPickCategory   = "pick_category:" // followed by the category id
	cbClose          = "close"
)

var titleCaser = cases.Title(language.English)

// renderPanel builds the status panel text: current backend, category,
// suffix, and the upload size limit. The panel is re-sent after every
// state-changing action so the chat always reflects persisted state.
func renderPanel(s *domain.UserSetting, categoryName string, maxUploadBytes int64) string {
	suffix := "—"
	if s.CustomSuffix != nil && *s.CustomSuffix != "" {
		suffix = *s.CustomSuffix
	}
	if categoryName == "" {
		categoryName = "—"
	}
	return fmt.Sprintf(
		"Settings\n\nStorage: %s\nCategory: %s\nSuffix: %s\nSize limit: %s",
		titleCaser.String(string(s.StorageType)),
		categoryName,
		suffix,
		humanSize(maxUploadBytes),
	)
}

// panelKeyboard builds the inline keyboard shown under the status panel.
func panelKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Switch storage", CallbackData: cbSwitchStorage}},
			{
				{Text: "Select category", CallbackData: cbSelectCategory},
				{Text: "New category", CallbackData: cbCreateCategory},
			},
			{{Text: "Set suffix", CallbackData: cbSetSuffix}},
			{{Text: "Close", CallbackData: cbClose}},
		},
	}
}

// categoryKeyboard lists one button per category for the pick flow.
func categoryKeyboard(cats []domain.Category) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(cats)+1)
	for _, c := range cats {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         c.Name,
			CallbackData: fmt.Sprintf("%s%d", cbPickCategory, c.ID),
		}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: "Close", CallbackData: cbClose}})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// humanSize formats a byte count for the panel.
func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
