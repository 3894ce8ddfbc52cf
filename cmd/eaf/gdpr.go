package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/eaftools/core/redact"
	"github.com/FocuswithJustin/eaftools/internal/audit"
	"github.com/FocuswithJustin/eaftools/internal/config"
	"github.com/FocuswithJustin/eaftools/internal/keystore"
	"github.com/FocuswithJustin/eaftools/internal/logging"
	"github.com/FocuswithJustin/eaftools/internal/validation"
)

// GDPRCmd pseudonymizes marked names across a batch of files.
type GDPRCmd struct {
	Files       []string `arg:"" help:"Annotation files to redact, processed in order" type:"existingfile"`
	Marker      string   `help:"Substring that marks a personal name (default @pt)"`
	Prefix      string   `help:"Token prefix (default PERSREF)"`
	SummaryTier string   `name:"summary-tier" help:"Name of the tier holding the original names"`
	Anchor      string   `help:"Summary entry anchor: center or begin"`
	KeyDB       string   `name:"key-db" help:"Write the name/token mapping to this SQLite file" type:"path"`
	Manifest    string   `help:"Write a JSON audit manifest to this path" type:"path"`
	XZ          bool     `name:"xz" help:"Compress outputs with xz"`
}

// settings merges the flags over the configured values.
func (c *GDPRCmd) settings(cfg config.GDPRConfig) config.GDPRConfig {
	if c.Marker != "" {
		cfg.Marker = c.Marker
	}
	if c.Prefix != "" {
		cfg.Prefix = c.Prefix
	}
	if c.SummaryTier != "" {
		cfg.SummaryTier = c.SummaryTier
	}
	if c.Anchor != "" {
		cfg.Anchor = c.Anchor
	}
	if c.KeyDB != "" {
		cfg.KeyDB = c.KeyDB
	}
	if c.Manifest != "" {
		cfg.Manifest = c.Manifest
	}
	cfg.XZ = cfg.XZ || c.XZ
	return cfg
}

func (c *GDPRCmd) Run(app *App) error {
	cfg := c.settings(app.Config.GDPR)

	anchor, err := redact.ParseAnchor(cfg.Anchor)
	if err != nil {
		return err
	}
	reg := redact.NewRegistry(cfg.Prefix)
	r, err := redact.New(reg, redact.Options{
		Marker:      cfg.Marker,
		SummaryTier: cfg.SummaryTier,
		SummaryType: cfg.SummaryType,
		Anchor:      anchor,
	})
	if err != nil {
		return err
	}

	manifest := audit.NewManifest(audit.Settings{
		Marker:      r.Options().Marker,
		Prefix:      reg.Prefix(),
		SummaryTier: r.Options().SummaryTier,
		Anchor:      string(r.Options().Anchor),
	})
	ctx := logging.WithRunID(context.Background(), manifest.RunID)

	var occurrences []keystore.Occurrence
	for _, input := range c.Files {
		entry, occ, err := c.redactFile(ctx, app, r, input, cfg.XZ)
		if err != nil {
			return err
		}
		manifest.Add(*entry)
		occurrences = append(occurrences, occ...)
	}

	if cfg.KeyDB != "" {
		snap := &keystore.Snapshot{
			RunID:       manifest.RunID,
			Prefix:      reg.Prefix(),
			Created:     manifest.Started,
			Mappings:    reg.Mappings(),
			Occurrences: occurrences,
		}
		if err := keystore.Write(cfg.KeyDB, snap); err != nil {
			return err
		}
		logging.InfoContext(ctx, "key_db_written", "path", cfg.KeyDB, "names", reg.Len())
	}

	if cfg.Manifest != "" {
		manifest.Finish(reg.Len())
		if err := manifest.Write(cfg.Manifest); err != nil {
			return err
		}
		logging.InfoContext(ctx, "manifest_written", "path", cfg.Manifest)
	}
	return nil
}

func (c *GDPRCmd) redactFile(ctx context.Context, app *App, r *redact.Redactor, input string, compress bool) (*audit.FileEntry, []keystore.Occurrence, error) {
	if err := validation.ValidateInputFile(input); err != nil {
		return nil, nil, err
	}
	output := validation.OutputPath(input, compress)
	if err := validation.CheckDistinct(input, output); err != nil {
		return nil, nil, err
	}
	fmt.Fprintf(app.Stdout, "%s -> %s\n", input, output)

	doc, err := load(input)
	if err != nil {
		return nil, nil, err
	}
	res, err := r.RedactDocument(doc, input)
	if err != nil {
		return nil, nil, err
	}
	doc.SetURN(uuid.New())
	if err := doc.Save(output); err != nil {
		return nil, nil, err
	}

	inHash, err := audit.HashFile(input)
	if err != nil {
		return nil, nil, err
	}
	outHash, err := audit.HashFile(output)
	if err != nil {
		return nil, nil, err
	}
	logging.FileWritten(ctx, input, output, res.Redactions, "summary_entries", len(res.Summary))

	entry := &audit.FileEntry{
		Input:          input,
		InputHash:      inHash,
		Output:         output,
		OutputHash:     outHash,
		URN:            doc.URN(),
		Redactions:     res.Redactions,
		SummaryEntries: len(res.Summary),
		Overlaps:       len(res.Overlaps),
	}
	return entry, keystore.OccurrencesFrom(res), nil
}

