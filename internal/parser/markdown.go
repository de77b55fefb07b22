// Package parser decodes uploaded documents into labelled plain text.
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	h1Re      = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// MarkdownDoc is a Markdown document split into frontmatter and sections.
type MarkdownDoc struct {
	Frontmatter map[string]any
	Title       string
	Content     string // body without frontmatter
	Sections    []Section
}

// Section is one heading and the text under it. Text before the first
// heading becomes a section with an empty heading.
type Section struct {
	Level   int // 0 for the preamble, 1-6 for h1-h6
	Heading string
	Path    string // e.g. "## Scope > ### Finance"
	Content string
}

// ParseMarkdown parses a Markdown document into structured form. Malformed
// frontmatter is ignored.
func ParseMarkdown(content string) (*MarkdownDoc, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	doc := &MarkdownDoc{Frontmatter: map[string]any{}}

	body := content
	if rest, ok := strings.CutPrefix(content, "---\n"); ok {
		if end := strings.Index(rest, "\n---"); end >= 0 {
			if err := yaml.Unmarshal([]byte(rest[:end]), &doc.Frontmatter); err != nil {
				doc.Frontmatter = map[string]any{}
			}
			body = strings.TrimPrefix(rest[end+len("\n---"):], "\n")
		}
	}

	doc.Content = body
	doc.Title = frontmatterString(doc.Frontmatter, "title")
	if doc.Title == "" {
		if m := h1Re.FindStringSubmatch(body); m != nil {
			doc.Title = strings.TrimSpace(m[1])
		}
	}
	doc.Sections = parseSections(body)
	return doc, nil
}

func frontmatterString(fm map[string]any, key string) string {
	s, _ := fm[key].(string)
	return s
}

func parseSections(content string) []Section {
	var (
		sections []Section
		path     []string
		levels   []int
		current  = &Section{}
		text     strings.Builder
	)

	flush := func() {
		current.Content = strings.TrimSpace(text.String())
		text.Reset()
		if current.Heading != "" || current.Content != "" {
			sections = append(sections, *current)
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			text.WriteString(line)
			text.WriteByte('\n')
			continue
		}

		flush()
		level := len(m[1])
		heading := strings.TrimSpace(m[2])
		for len(levels) > 0 && levels[len(levels)-1] >= level {
			path = path[:len(path)-1]
			levels = levels[:len(levels)-1]
		}
		path = append(path, m[1]+" "+heading)
		levels = append(levels, level)
		current = &Section{Level: level, Heading: heading, Path: strings.Join(path, " > ")}
	}
	flush()
	return sections
}
