package main

import (
	"fmt"

	"github.com/FocuswithJustin/eaftools/core/encoding"
	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/internal/display"
)

// ExtractCmd plans media segments for the annotations of one tier.
type ExtractCmd struct {
	File   string `arg:"" help:"Annotation file" type:"existingfile"`
	Tier   string `short:"t" required:"" help:"Tier whose annotations define the segments"`
	Media  string `help:"Media file to cut (default: first linked media)" type:"path"`
	DryRun bool   `name:"dry-run" help:"Print the planned segments and exit"`
}

func (c *ExtractCmd) Run(app *App) error {
	doc, err := load(c.File)
	if err != nil {
		return err
	}
	tiers, err := selectTiers(doc, []string{c.Tier})
	if err != nil {
		return err
	}
	spans, err := doc.Spans()
	if err != nil {
		return err
	}

	media := c.Media
	if media == "" {
		for _, m := range doc.Media() {
			if media = m.RelativeURL; media == "" {
				media = m.URL
			}
			if media != "" {
				break
			}
		}
	}
	if media == "" {
		return &errors.ValidationError{Field: "media", Message: "no media linked in " + c.File + "; pass --media"}
	}

	if !c.DryRun {
		return errors.NewUnsupported("media extraction", "only --dry-run is available")
	}

	fmt.Fprintf(app.Stdout, "# %s\n", media)
	for i, a := range tiers[0].Annotations {
		span := spans[a.AnnotationID()]
		fmt.Fprintf(app.Stdout, "%d\t%s\t%s\t%s\n", i+1,
			display.FormatTime(span.Begin, false),
			display.FormatTime(span.End, false),
			encoding.EscapeControl(a.AnnotationValue()))
	}
	return nil
}
