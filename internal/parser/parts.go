package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// PartConfig controls how plain text is split into labelled parts.
type PartConfig struct {
	// MaxSize is the largest part in bytes; longer paragraphs split at
	// sentence boundaries.
	MaxSize int
}

func DefaultPartConfig() PartConfig {
	return PartConfig{MaxSize: 4000}
}

// SplitParts groups paragraphs into parts labelled "Part N".
func SplitParts(text string, cfg PartConfig) []Part {
	var parts []Part
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		parts = append(parts, Part{
			Label: fmt.Sprintf("Part %d", len(parts)+1),
			Text:  strings.TrimSpace(current.String()),
		})
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len()+len(para) > cfg.MaxSize {
			flush()
		}
		if len(para) > cfg.MaxSize {
			for _, piece := range packSentences(para, cfg.MaxSize) {
				current.WriteString(piece)
				flush()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return parts
}

// packSentences groups sentences into pieces no longer than size where
// possible.
func packSentences(text string, size int) []string {
	var pieces []string
	var current strings.Builder
	for _, s := range splitSentences(text) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if current.Len()+len(s) > size && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		// "Dr." and similar
		if i > 1 && unicode.IsUpper(runes[i-1]) {
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// Truncate keeps whole parts until budget bytes are used. The part that
// crosses the budget is cut and marked. Reports whether anything was cut.
func (d *Document) Truncate(budget int) bool {
	used := 0
	for i, p := range d.Parts {
		if used+len(p.Text) <= budget {
			used += len(p.Text)
			continue
		}
		remaining := budget - used
		if remaining > 0 {
			d.Parts[i].Text = strings.ToValidUTF8(p.Text[:remaining], "") + "\n[truncated]"
			d.Parts = d.Parts[:i+1]
		} else {
			d.Parts = d.Parts[:i]
		}
		return true
	}
	return false
}
