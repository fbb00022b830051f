package timedtext

import (
	"bytes"
	"cmp"
	"io"
	"slices"
	"strconv"
)

const (
	header = `<?xml version="1.0" encoding="utf-8"?>` + "\n" +
		`<timedtext format="3">` + "\n" +
		"<head>\n"
	bodyOpen = "</head>\n<body>\n"
	footer   = "\n</body></timedtext>"
)

// Serialize renders d as a format 3 timed-text document.
func Serialize(d Document) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = Write(&buf, d)
	return buf.Bytes()
}

// Write renders d to w: the declaration and head with one pen per
// registered color in id order, then one paragraph per block.
func Write(w io.Writer, d Document) error {
	pens := slices.SortedStableFunc(slices.Values(d.Pens), func(a, b Pen) int { return cmp.Compare(a.ID, b.ID) })

	var buf bytes.Buffer
	buf.WriteString(header)
	for _, p := range pens {
		buf.WriteString(`  <pen id="`)
		buf.WriteString(strconv.Itoa(p.ID))
		buf.WriteString(`" fc="`)
		buf.WriteString(p.Color)
		buf.WriteString(`" ft="3" bo="0" ec="0" />`)
		buf.WriteByte('\n')
	}
	buf.WriteString(bodyOpen)
	for i, b := range d.Blocks {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(`<p t="`)
		buf.WriteString(strconv.FormatInt(b.StartMs, 10))
		buf.WriteString(`" d="`)
		buf.WriteString(strconv.FormatInt(b.DurationMs, 10))
		buf.WriteString(`">`)
		buf.WriteString(b.Body)
		buf.WriteString("</p>")
	}
	buf.WriteString(footer)
	_, err := buf.WriteTo(w)
	return err
}
