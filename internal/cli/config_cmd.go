package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/ui"
)

// configShowCommand prints the resolved config with secrets masked.
func configShowCommand(w io.Writer) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := config.Marshal(config.Redacted(cfg))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to render config",
			"")
	}

	fmt.Fprintln(w, ui.MutedStyle().Render("# "+configSource(path)))
	_, err = w.Write(data)
	return err
}
