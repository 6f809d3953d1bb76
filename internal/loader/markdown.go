package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor converts markdown to plain text using the goldmark AST.
// Block elements are separated by a blank line so the splitter can break on them.
type MarkdownExtractor struct {
	parser goldmark.Markdown
}

// NewMarkdownExtractor creates a markdown extractor with table support.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

func (m *MarkdownExtractor) Extract(_ context.Context, path string) (Extracted, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Extracted{}, fmt.Errorf("failed to read file: %w", err)
	}
	plain, title := m.PlainText(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Extracted{
		Text:     plain,
		Metadata: map[string]any{"title": title},
	}, nil
}

// PlainText returns the text of content and its first level 1 or 2 heading.
func (m *MarkdownExtractor) PlainText(content []byte) (plain string, title string) {
	if len(content) == 0 {
		return "", ""
	}

	doc := m.parser.Parser().Parse(text.NewReader(content))

	var blocks []string
	var firstH1, firstH2 string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			headingText := extractTextFromNode(node, content)
			if node.Level == 1 && firstH1 == "" {
				firstH1 = headingText
			} else if node.Level == 2 && firstH2 == "" {
				firstH2 = headingText
			}
			blocks = appendBlock(blocks, headingText)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			blocks = appendBlock(blocks, extractTextFromNode(node, content))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var code strings.Builder
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				code.Write(seg.Value(content))
			}
			blocks = appendBlock(blocks, code.String())
			return ast.WalkSkipChildren, nil
		case *east.TableHeader, *east.TableRow:
			blocks = appendBlock(blocks, extractTableRowText(node, content))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	title = firstH1
	if title == "" {
		title = firstH2
	}
	return strings.Join(blocks, "\n\n"), title
}

func appendBlock(blocks []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return blocks
	}
	return append(blocks, s)
}

// extractTextFromNode extracts text content from a node and its children.
func extractTextFromNode(n ast.Node, content []byte) string {
	var textBuilder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(content))
			if v.HardLineBreak() {
				textBuilder.WriteString("\n")
			} else if v.SoftLineBreak() {
				textBuilder.WriteString(" ")
			}
		case *ast.String:
			textBuilder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(textBuilder.String())
}

// extractTableRowText extracts text from a table row, formatting cells with pipe separators.
func extractTableRowText(row ast.Node, content []byte) string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		if _, ok := c.(*east.TableCell); ok {
			cells = append(cells, extractTextFromNode(c, content))
		}
	}
	return strings.Join(cells, " | ")
}
