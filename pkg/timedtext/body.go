package timedtext

import (
	"strconv"
	"strings"

	"github.com/matzehuels/framepen/pkg/encode"
)

// RenderBody turns encoded rows into block body text, registering the pen of
// every run in order. Each row is terminated by a line break.
func RenderBody(rows []encode.Row, reg *PenRegistry) string {
	var b strings.Builder
	for _, row := range rows {
		for _, run := range row {
			b.WriteString(`<s p="`)
			b.WriteString(strconv.Itoa(reg.IDOf(run.Color.Hex())))
			b.WriteString(`">`)
			b.WriteString(run.Text)
			b.WriteString("</s>")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
