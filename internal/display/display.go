// Package display renders tiers and annotations for the terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/FocuswithJustin/eaftools/core/eaf"
	"github.com/FocuswithJustin/eaftools/core/encoding"
	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/core/timecode"
)

// ANSI sequences used for match highlighting.
const (
	highlightOn  = "\x1b[1;31m"
	highlightOff = "\x1b[0m"
)

// ColorMode controls match highlighting.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a color mode name. "" selects ColorAuto.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(s) {
	case ColorAuto, "":
		return ColorAuto, nil
	case ColorAlways, ColorNever:
		return ColorMode(s), nil
	}
	return "", &errors.ValidationError{Field: "color", Value: s, Message: "must be auto, always or never"}
}

// Enabled reports whether output to w should be highlighted. In auto mode
// that is the case when w is a terminal and NO_COLOR is unset.
func (m ColorMode) Enabled(w io.Writer) bool {
	switch m {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Highlight escapes control characters in value and, if color is set,
// wraps every match of re in ANSI highlighting. Matching runs on the
// unescaped value.
func Highlight(value string, re *regexp.Regexp, color bool) string {
	if re == nil || !color {
		return encoding.EscapeControl(value)
	}
	matches := re.FindAllStringIndex(value, -1)
	if len(matches) == 0 {
		return encoding.EscapeControl(value)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m[0] == m[1] {
			continue
		}
		b.WriteString(encoding.EscapeControl(value[last:m[0]]))
		b.WriteString(highlightOn)
		b.WriteString(encoding.EscapeControl(value[m[0]:m[1]]))
		b.WriteString(highlightOff)
		last = m[1]
	}
	b.WriteString(encoding.EscapeControl(value[last:]))
	return b.String()
}

// FormatTime renders a time in milliseconds, either as a raw number or as
// HH:MM:SS.mmm.
func FormatTime(ms int64, raw bool) string {
	if raw {
		return strconv.FormatInt(ms, 10)
	}
	return timecode.Format(ms)
}

// Line is one printable annotation.
type Line struct {
	Tier  string
	Begin int64
	End   int64
	Value string
}

// LineOptions controls annotation output.
type LineOptions struct {
	RawTimes bool
	Match    *regexp.Regexp
	Color    bool
}

// WriteLine prints an annotation as tier, begin, end and value separated
// by tabs.
func WriteLine(w io.Writer, l Line, opts LineOptions) error {
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		encoding.EscapeControl(l.Tier),
		FormatTime(l.Begin, opts.RawTimes),
		FormatTime(l.End, opts.RawTimes),
		Highlight(l.Value, opts.Match, opts.Color),
	)
	return err
}

// TierRow summarizes a tier.
type TierRow struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Annotations    int    `json:"annotations"`
	Participant    string `json:"participant,omitempty"`
	LinguisticType string `json:"linguistic_type"`
	Parent         string `json:"parent,omitempty"`
}

// TierRows summarizes the tiers of a document in document order.
func TierRows(tiers []*eaf.Tier) []TierRow {
	rows := make([]TierRow, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, TierRow{
			Name:           t.Name,
			Kind:           t.Kind(),
			Annotations:    len(t.Annotations),
			Participant:    t.Participant,
			LinguisticType: t.LinguisticType,
			Parent:         t.Parent,
		})
	}
	return rows
}

// WriteTierTable prints rows as an aligned table.
func WriteTierTable(w io.Writer, rows []TierRow) error {
	width := len("TIER")
	for _, r := range rows {
		if n := len(encoding.EscapeControl(r.Name)); n > width {
			width = n
		}
	}

	format := fmt.Sprintf("%%-%ds %%-9s %%6s %%-12s %%s\n", width)
	if _, err := fmt.Fprintf(w, format, "TIER", "KIND", "COUNT", "PARTICIPANT", "TYPE"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, format, "----", "----", "-----", "-----------", "----"); err != nil {
		return err
	}
	for _, r := range rows {
		_, err := fmt.Fprintf(w, format,
			encoding.EscapeControl(r.Name),
			r.Kind,
			strconv.Itoa(r.Annotations),
			encoding.EscapeControl(r.Participant),
			encoding.EscapeControl(r.LinguisticType),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
