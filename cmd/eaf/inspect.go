package main

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/FocuswithJustin/eaftools/core/eaf"
	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/core/timecode"
	"github.com/FocuswithJustin/eaftools/internal/display"
	"github.com/FocuswithJustin/eaftools/internal/logging"
)

// TiersCmd lists tiers.
type TiersCmd struct {
	Files []string `arg:"" help:"Annotation files (.eaf, .eaf.xz, .eaf.gz)" type:"existingfile"`
	JSON  bool     `name:"json" help:"Print JSON instead of a table"`
}

type fileTiers struct {
	File  string            `json:"file"`
	Tiers []display.TierRow `json:"tiers"`
}

func (c *TiersCmd) Run(app *App) error {
	var all []fileTiers
	for i, path := range c.Files {
		doc, err := load(path)
		if err != nil {
			return err
		}
		rows := display.TierRows(doc.Tiers())

		if c.JSON {
			all = append(all, fileTiers{File: path, Tiers: rows})
			continue
		}
		if i > 0 {
			fmt.Fprintln(app.Stdout)
		}
		if len(c.Files) > 1 {
			fmt.Fprintf(app.Stdout, "%s:\n", path)
		}
		if err := display.WriteTierTable(app.Stdout, rows); err != nil {
			return err
		}
	}

	if c.JSON {
		enc := json.NewEncoder(app.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}
	return nil
}

// AnnotationsCmd prints annotations.
type AnnotationsCmd struct {
	Files []string `arg:"" help:"Annotation files (.eaf, .eaf.xz, .eaf.gz)" type:"existingfile"`
	Tier  []string `short:"t" help:"Only print these tiers (repeatable)"`
	Match string   `short:"m" help:"Only print annotations whose value matches this regular expression"`
	Range string   `short:"r" help:"Only print annotations overlapping a time range, e.g. 00:01..00:02.5"`
	Ms    bool     `name:"ms" help:"Print times as milliseconds"`
	Color string   `help:"Highlight matches: auto, always, never"`
}

func (c *AnnotationsCmd) Run(app *App) error {
	var re *regexp.Regexp
	if c.Match != "" {
		var err error
		if re, err = regexp.Compile(c.Match); err != nil {
			return &errors.ValidationError{Field: "match", Value: c.Match, Message: err.Error()}
		}
	}

	var window *timecode.Range
	if c.Range != "" {
		r, err := timecode.ParseRange(c.Range)
		if err != nil {
			return err
		}
		window = &r
	}

	colorName := c.Color
	if colorName == "" {
		colorName = app.Config.Display.Color
	}
	mode, err := display.ParseColorMode(colorName)
	if err != nil {
		return err
	}
	opts := display.LineOptions{
		RawTimes: c.Ms,
		Match:    re,
		Color:    mode.Enabled(app.Stdout),
	}

	for _, path := range c.Files {
		doc, err := load(path)
		if err != nil {
			return err
		}
		tiers, err := selectTiers(doc, c.Tier)
		if err != nil {
			return errors.Wrapf(err, "%s", path)
		}
		spans, err := doc.Spans()
		if err != nil {
			return errors.Wrapf(err, "%s", path)
		}

		for _, tier := range tiers {
			for _, a := range tier.Annotations {
				span := spans[a.AnnotationID()]
				if window != nil && !window.Overlaps(span.Begin, span.End) {
					continue
				}
				if re != nil && !re.MatchString(a.AnnotationValue()) {
					continue
				}
				if len(c.Files) > 1 {
					fmt.Fprintf(app.Stdout, "%s\t", path)
				}
				line := display.Line{Tier: tier.Name, Begin: span.Begin, End: span.End, Value: a.AnnotationValue()}
				if err := display.WriteLine(app.Stdout, line, opts); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// selectTiers returns the named tiers in document order, or all tiers if
// names is empty.
func selectTiers(doc *eaf.Document, names []string) ([]*eaf.Tier, error) {
	if len(names) == 0 {
		return doc.Tiers(), nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := doc.Tier(n); !ok {
			return nil, errors.NewNotFound("tier", n)
		}
		wanted[n] = true
	}
	var out []*eaf.Tier
	for _, t := range doc.Tiers() {
		if wanted[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}

func load(path string) (*eaf.Document, error) {
	doc, err := eaf.Load(path)
	if err != nil {
		return nil, err
	}
	logging.FileLoaded(path, len(doc.Tiers()))
	return doc, nil
}
