package main

import (
	"fmt"
	"time"

	"github.com/FocuswithJustin/eaftools/core/encoding"
	"github.com/FocuswithJustin/eaftools/internal/display"
	"github.com/FocuswithJustin/eaftools/internal/keystore"
)

// KeysCmd prints a key file written by gdpr --key-db.
type KeysCmd struct {
	File        string `arg:"" help:"Key file (SQLite)" type:"existingfile"`
	Occurrences bool   `short:"o" help:"List every redacted annotation instead of the name table"`
}

func (c *KeysCmd) Run(app *App) error {
	snap, err := keystore.Read(c.File)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "# run %s, prefix %s, created %s\n",
		snap.RunID, snap.Prefix, snap.Created.Format(time.RFC3339))

	if c.Occurrences {
		for _, o := range snap.Occurrences {
			fmt.Fprintf(app.Stdout, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				o.Token,
				encoding.EscapeControl(o.Source),
				encoding.EscapeControl(o.Tier),
				o.AnnotationID,
				display.FormatTime(o.Begin, false),
				display.FormatTime(o.End, false),
				encoding.EscapeControl(o.Value))
		}
		return nil
	}

	for _, m := range snap.Mappings {
		fmt.Fprintf(app.Stdout, "%s\t%s\t%s\n",
			m.Token,
			encoding.EscapeControl(m.Canonical),
			encoding.EscapeControl(m.Source))
	}
	return nil
}
