package script

import (
	"strings"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
	"<", `\<`,
)

// Markdown renders s with a bold label on every line. Parsing the result
// yields s again.
func Markdown(s domain.Script) string {
	var b strings.Builder
	for i, l := range s.Lines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("**")
		b.WriteString(mdEscaper.Replace(l.Speaker))
		b.WriteString(":** ")
		b.WriteString(mdEscaper.Replace(l.Text))
	}
	return b.String()
}
