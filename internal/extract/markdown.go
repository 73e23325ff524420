package extract

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor turns markdown into plain text with one line per block,
// so headings, paragraphs, list items and code blocks stay apart.
type MarkdownExtractor struct {
	md goldmark.Markdown
}

func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{md: goldmark.New()}
}

func (m *MarkdownExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	raw, err := readFile(ctx, "markdown", path)
	if err != nil {
		return nil, err
	}
	src := []byte(strings.ToValidUTF8(string(raw), "\uFFFD"))
	return &Result{Text: m.PlainText(src), PageCount: 1}, nil
}

func (m *MarkdownExtractor) PlainText(src []byte) string {
	doc := m.md.Parser().Parse(text.NewReader(src))
	var (
		blocks []string
		sb     strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			blocks = append(blocks, s)
		}
		sb.Reset()
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				flush()
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
						blocks = append(blocks, line)
					}
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.Label(src))
			}
		case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
			if !entering {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	flush()
	return strings.Join(blocks, "\n")
}
