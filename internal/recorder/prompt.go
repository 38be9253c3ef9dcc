package recorder

import (
	"context"

	"github.com/ncruces/zenity"

	"github.com/tphakala/rawrecord/internal/errors"
)

// DialogPrompter asks for a destination with the platform's native save dialog.
type DialogPrompter struct {
	Title string
}

// SaveFile shows a save dialog preset to defaultName.
func (p DialogPrompter) SaveFile(ctx context.Context, defaultName string) (string, error) {
	title := p.Title
	if title == "" {
		title = "Save raw capture"
	}

	path, err := zenity.SelectFileSave(
		zenity.Context(ctx),
		zenity.Title(title),
		zenity.Filename(defaultName),
		zenity.ConfirmOverwrite(),
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrPromptCancelled
	}
	if err != nil {
		return "", errors.New(err).
			Component("recorder").
			Category(errors.CategorySystem).
			Context("operation", "save_dialog").
			Build()
	}
	return path, nil
}
