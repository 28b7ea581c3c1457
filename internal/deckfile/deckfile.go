// Package deckfile parses Markdown deck files into decks of HTML cards.
//
// A deck file carries YAML frontmatter (title, optional tags) followed by
// one "## " section per card: the heading is the card front, the section
// body is the card back. Both sides are rendered from Markdown to HTML.
package deckfile

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghhtml "github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

var (
	headingRe = regexp.MustCompile(`(?m)^## +(.+?)\s*$`)
	tagRe     = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// WithUnsafe because card content legitimately embeds raw HTML (images,
// audio, video) that the exporter later rewrites.
var renderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(ghhtml.WithUnsafe()),
)

// Result holds the output of parsing one deck file.
type Result struct {
	Title string
	Tags  []string
	Cards []models.Card
}

// Parse extracts frontmatter and card sections from raw Markdown bytes.
// Deck-level tags apply to every card in addition to the card's own inline
// #tags.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Title: titleFrom(fm),
		Tags:  tagsFrom(fm),
	}

	locs := headingRe.FindAllStringSubmatchIndex(body, -1)
	for i, loc := range locs {
		front := body[loc[2]:loc[3]]
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		back := strings.TrimSpace(body[loc[1]:end])

		frontHTML, err := render(front)
		if err != nil {
			return nil, fmt.Errorf("deckfile: render front %q: %w", front, err)
		}
		backHTML, err := render(back)
		if err != nil {
			return nil, fmt.Errorf("deckfile: render back of %q: %w", front, err)
		}

		res.Cards = append(res.Cards, models.Card{
			Front: frontHTML,
			Back:  backHTML,
			Tags:  cardTags(back, res.Tags),
		})
	}

	return res, nil
}

// render converts a Markdown fragment to HTML.
func render(md string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter — treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML — fall back to body only.
		return nil, string(data), nil
	}

	return fm, body, nil
}

func titleFrom(fm map[string]any) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm["title"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// tagsFrom collects deck-level tags from the frontmatter "tags" list.
func tagsFrom(fm map[string]any) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm["tags"].([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// cardTags merges deck-level tags with inline #tags from the card body.
func cardTags(body string, deckTags []string) []string {
	seen := make(map[string]struct{}, len(deckTags))
	var out []string
	for _, t := range deckTags {
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
