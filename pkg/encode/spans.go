package encode

import "strings"

// Run is a maximal stretch of adjacent cells sharing a quantized color (and,
// unless glyph merging is on, a glyph). Text is escaped and ready to be
// placed inside a span element.
type Run struct {
	Color RGB
	Text  string
}

// Row is the run sequence of one grid row.
type Row []Run

// Glyphs returns the decoded glyph text of the row.
func (r Row) Glyphs() string {
	var b strings.Builder
	for _, run := range r {
		b.WriteString(DecodeText(run.Text))
	}
	return b.String()
}

// EncodeGrid encodes every row of g.
func EncodeGrid(g Grid, mergeGlyphs bool) []Row {
	rows := make([]Row, len(g))
	for i, cells := range g {
		rows[i] = EncodeRow(cells, mergeGlyphs)
	}
	return rows
}

// EncodeRow walks cells left to right and emits a run whenever the color
// changes, or the glyph changes and mergeGlyphs is false. The final run is
// always emitted.
func EncodeRow(cells []Cell, mergeGlyphs bool) Row {
	if len(cells) == 0 {
		return nil
	}
	var (
		row   Row
		text  strings.Builder
		start = cells[0]
	)
	flush := func() {
		row = append(row, Run{Color: start.Color, Text: text.String()})
		text.Reset()
	}
	for i, c := range cells {
		if i > 0 && (c.Color != start.Color || (!mergeGlyphs && c.Glyph != start.Glyph)) {
			flush()
			start = c
		}
		text.WriteString(EscapeGlyph(c.Glyph))
	}
	flush()
	return row
}

// EscapeGlyph returns the document text for a single glyph. The XML
// metacharacters &, < and > become entities; a double quote or backtick is
// followed by a space so it renders with stable width.
func EscapeGlyph(r rune) string {
	switch r {
	case '&':
		return "&amp;"
	case '<':
		return "&lt;"
	case '>':
		return "&gt;"
	case '"':
		return `" `
	case '`':
		return "` "
	default:
		return string(r)
	}
}

// DecodeText reverses [EscapeGlyph] over a run's text.
func DecodeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "&amp;"):
			b.WriteByte('&')
			i += len("&amp;")
		case strings.HasPrefix(s[i:], "&lt;"):
			b.WriteByte('<')
			i += len("&lt;")
		case strings.HasPrefix(s[i:], "&gt;"):
			b.WriteByte('>')
			i += len("&gt;")
		case s[i] == '"' || s[i] == '`':
			b.WriteByte(s[i])
			i++
			if i < len(s) && s[i] == ' ' {
				i++
			}
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}
