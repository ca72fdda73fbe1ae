// Package script turns free text into speaker-tagged script lines.
//
// Both model output and hand-written scripts use the same "Label: text"
// layout. Markdown decoration that language models like to add (bold labels,
// list bullets, headings) is stripped before tags are recognised.
package script

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

var (
	tagPattern   = regexp.MustCompile(`^([^:：]{1,40}?)\s*[:：]\s*(.*)$`)
	spacePattern = regexp.MustCompile(`\s+`)
	wordPattern  = regexp.MustCompile(`^\S+(\s+\p{N}+)?$`)
	md           = goldmark.New()
)

// Options controls how speaker tags are recognised.
type Options struct {
	// Vocabulary restricts recognised labels. Matching is case-insensitive
	// and yields the vocabulary spelling. When empty, a well-formed label is
	// accepted as written if it is one word, optionally numbered
	// ("Speaker 2"). Longer labels count only once they have appeared alone
	// on a line.
	Vocabulary []string

	// DefaultSpeaker labels lines without a recognised tag.
	DefaultSpeaker string
}

// Parser converts raw text to script lines.
type Parser struct {
	vocab          map[string]string
	defaultSpeaker string
}

// NewParser creates a parser from opts.
func NewParser(opts Options) *Parser {
	p := &Parser{defaultSpeaker: opts.DefaultSpeaker}
	if p.defaultSpeaker == "" {
		p.defaultSpeaker = domain.DefaultSpeaker
	}
	if len(opts.Vocabulary) > 0 {
		p.vocab = make(map[string]string, len(opts.Vocabulary))
		for _, v := range opts.Vocabulary {
			p.vocab[normalizeLabel(v)] = v
		}
	}
	return p
}

// Parse splits raw into lines and assigns each a speaker. A line that only
// holds a tag ("Narrator:") assigns that speaker to the untagged lines that
// follow it, up to the next tag. All other untagged lines go to the default
// speaker. Blank lines are dropped.
func (p *Parser) Parse(raw string) domain.Script {
	var (
		lines []domain.ScriptLine
		carry string
		known = make(map[string]bool)
	)

	for _, rawLine := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line := StripMarkdown(rawLine)
		if line == "" {
			continue
		}

		speaker, body, tagged := p.splitTag(line, known)
		switch {
		case tagged && body == "":
			carry = speaker
			known[speaker] = true
			continue
		case tagged:
			carry = ""
		case carry != "":
			speaker, body = carry, line
		default:
			speaker, body = p.defaultSpeaker, line
		}

		lines = append(lines, domain.ScriptLine{Speaker: speaker, Text: body})
	}

	return domain.NewScript(lines...)
}

func (p *Parser) splitTag(line string, known map[string]bool) (speaker, body string, ok bool) {
	m := tagPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	candidate := strings.Trim(strings.TrimSpace(m[1]), "[]()")
	body = strings.TrimSpace(m[2])

	if p.vocab != nil {
		label, found := p.vocab[normalizeLabel(candidate)]
		if !found {
			return "", "", false
		}
		return label, body, true
	}

	if !domain.IsLabel(candidate) {
		return "", "", false
	}
	if body != "" && !known[candidate] && !wordPattern.MatchString(candidate) {
		return "", "", false
	}
	return candidate, body, true
}

// ParseManual parses a hand-written script without a vocabulary and
// validates the result.
func ParseManual(raw string) (domain.Script, error) {
	s := NewParser(Options{}).Parse(raw)
	if err := s.Validate(); err != nil {
		return domain.Script{}, err
	}
	return s, nil
}

// StripMarkdown renders a single line of markdown to plain text and
// collapses whitespace.
func StripMarkdown(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	src := []byte(line)
	doc := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(util.UnescapePunctuations(node.Segment.Value(src)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.Write(t.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			b.Write(node.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(spacePattern.ReplaceAllString(b.String(), " "))
}

func normalizeLabel(s string) string {
	return strings.ToLower(spacePattern.ReplaceAllString(strings.TrimSpace(s), " "))
}
