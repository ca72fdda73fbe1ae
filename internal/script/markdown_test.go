package script

import (
	"testing"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

func TestMarkdown(t *testing.T) {
	s := domain.NewScript(
		domain.ScriptLine{Speaker: "narrator", Text: "Breathe in *slowly*."},
		domain.ScriptLine{Speaker: "companion", Text: "Now #relax_"},
	)

	got := Markdown(s)
	want := "**narrator:** Breathe in \\*slowly\\*.\n\n**companion:** Now \\#relax\\_"
	if got != want {
		t.Fatalf("Markdown() = %q, want %q", got, want)
	}

	back, err := ParseManual(got)
	if err != nil {
		t.Fatalf("ParseManual() error: %v", err)
	}
	if back.String() != s.String() {
		t.Errorf("round trip = %q, want %q", back, s)
	}
}
