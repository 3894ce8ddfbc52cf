// Package timecode formats and parses annotation times.
//
// Times are integer milliseconds, the unit used by EAF time slots.
// Accepted input forms:
//
//	"1:02:03.5"   hours, minutes, seconds, fraction
//	"02:03.250"   minutes, seconds, fraction
//	"3.5"         seconds, fraction
//	"00:10..00:20" a range; either end may be omitted ("..00:20", "00:10..")
package timecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/eaftools/core/errors"
)

// Format renders ms as HH:MM:SS.mmm.
func Format(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	frac := ms % 1000
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, s, frac)
}

//nolint:govet // participle grammar tags are not standard struct tags
type timeGrammar struct {
	Parts    []string `@Int ( ":" @Int )*`
	Fraction *string  `( "." @Int )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type rangeGrammar struct {
	Start *timeGrammar `@@?`
	Sep   string       `@".."`
	End   *timeGrammar `@@?`
}

// timeLexer tokenizes timecodes. Range must precede Punct.
var timeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Range", Pattern: `\.\.`},
	{Name: "Punct", Pattern: `[:.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var timeParser = participle.MustBuild[timeGrammar](
	participle.Lexer(timeLexer),
	participle.Elide("Whitespace"),
)

var rangeParser = participle.MustBuild[rangeGrammar](
	participle.Lexer(timeLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a single timecode into milliseconds.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewParse("timecode", "", "empty timecode")
	}
	parsed, err := timeParser.ParseString("", s)
	if err != nil {
		return 0, errors.NewParse("timecode", "", fmt.Sprintf("%q: %v", s, err))
	}
	return parsed.millis(s)
}

func (g *timeGrammar) millis(src string) (int64, error) {
	if len(g.Parts) > 3 {
		return 0, errors.NewParse("timecode", "", fmt.Sprintf("%q: too many fields", src))
	}

	var total int64
	for i, p := range g.Parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, errors.NewParse("timecode", "", fmt.Sprintf("%q: %v", src, err))
		}
		// every field after the first is base 60
		if i > 0 && v >= 60 {
			return 0, errors.NewParse("timecode", "", fmt.Sprintf("%q: field %q out of range", src, p))
		}
		total = total*60 + v
	}
	total *= 1000

	if g.Fraction != nil {
		frac := *g.Fraction
		if len(frac) > 3 {
			frac = frac[:3]
		}
		for len(frac) < 3 {
			frac += "0"
		}
		v, _ := strconv.ParseInt(frac, 10, 64)
		total += v
	}
	return total, nil
}

// Range is a time window in milliseconds. An unset bound is open.
type Range struct {
	Start    int64
	End      int64
	HasStart bool
	HasEnd   bool
}

// ParseRange parses "start..end" where either side may be omitted.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, errors.NewParse("time range", "", "empty range")
	}
	parsed, err := rangeParser.ParseString("", s)
	if err != nil {
		return Range{}, errors.NewParse("time range", "", fmt.Sprintf("%q: %v", s, err))
	}

	var r Range
	if parsed.Start != nil {
		if r.Start, err = parsed.Start.millis(s); err != nil {
			return Range{}, err
		}
		r.HasStart = true
	}
	if parsed.End != nil {
		if r.End, err = parsed.End.millis(s); err != nil {
			return Range{}, err
		}
		r.HasEnd = true
	}
	if r.HasStart && r.HasEnd && r.End < r.Start {
		return Range{}, errors.NewParse("time range", "", fmt.Sprintf("%q: end before start", s))
	}
	return r, nil
}

// Overlaps reports whether [begin, end] intersects the range. Bounds are
// inclusive on both sides.
func (r Range) Overlaps(begin, end int64) bool {
	if r.HasStart && end < r.Start {
		return false
	}
	if r.HasEnd && begin > r.End {
		return false
	}
	return true
}

// String renders the range in the form accepted by ParseRange.
func (r Range) String() string {
	var b strings.Builder
	if r.HasStart {
		b.WriteString(Format(r.Start))
	}
	b.WriteString("..")
	if r.HasEnd {
		b.WriteString(Format(r.End))
	}
	return b.String()
}
