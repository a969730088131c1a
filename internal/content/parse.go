package content

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/puzzlepages/shelf/pkg/utils"
)

// DescriptionLength is the maximum description length in runes before truncation.
const DescriptionLength = 200

// yaml.v3 decodes nested mappings as map[string]any, which keeps frontmatter JSON-encodable.
var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

var markdown = goldmark.New()

// ParseDocument splits a markdown source into its frontmatter map and body.
// A document without frontmatter yields an empty map and the whole source as body.
func ParseDocument(src []byte) (map[string]any, string, error) {
	var fm map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(src), &fm, yamlFormat)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, string(body), nil
}

// ParseFile reads and parses the markdown file at path.
func ParseFile(path string) (map[string]any, string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	fm, body, err := ParseDocument(src)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return fm, body, nil
}

// Description returns the first non-empty paragraph text of body, skipping
// headings, truncated to DescriptionLength runes.
func Description(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	src := []byte(body)
	doc := markdown.Parser().Parse(text.NewReader(src))
	var found string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph, ast.KindTextBlock:
			if t := inlineText(n, src); t != "" {
				found = t
				return ast.WalkStop, nil
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return utils.Truncate(found, DescriptionLength)
}

// inlineText flattens the inline children of n into one space-normalized line.
// Image alt text is not part of the description.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Image, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
