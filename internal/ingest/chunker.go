package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const defaultChunkChars = 1000

// Chunker splits markdown (or plain text) into retrieval-sized pieces along
// block boundaries. Level 1 and 2 headings start a new chunk and are carried
// as context into every chunk under them.
type Chunker struct {
	maxChars int
}

func NewChunker(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = defaultChunkChars
	}
	return &Chunker{maxChars: maxChars}
}

func (c *Chunker) Split(content string) []string {
	md := goldmark.New()
	reader := text.NewReader([]byte(content))
	doc := md.Parser().Parse(reader)

	var chunks []string
	var current []string
	var currentChars int
	var heading string

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, "\n\n")
		if heading != "" {
			body = "Heading: " + heading + "\n" + body
		}
		chunks = append(chunks, body)
		current = nil
		currentChars = 0
	}

	appendBlock := func(block string) {
		for _, piece := range splitOversized(block, c.maxChars) {
			size := len([]rune(piece))
			if currentChars > 0 && currentChars+size > c.maxChars {
				flush()
			}
			current = append(current, piece)
			currentChars += size
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level <= 2 {
				flush()
				heading = string(n.Text(reader.Source()))
			} else {
				appendBlock(string(n.Text(reader.Source())))
			}
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			lang := string(n.Language(reader.Source()))
			sb.WriteString("```" + lang + "\n")
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(reader.Source()))
			}
			sb.WriteString("```")
			appendBlock(sb.String())
		default:
			if txt := extractText(node, reader.Source()); txt != "" {
				appendBlock(txt)
			}
		}
	}
	flush()
	if len(chunks) == 0 && strings.TrimSpace(content) != "" {
		chunks = splitOversized(strings.TrimSpace(content), c.maxChars)
	}
	return chunks
}

// splitOversized hard-splits a single block that alone exceeds the budget,
// preferring line boundaries and falling back to a rune cut.
func splitOversized(block string, maxChars int) []string {
	if len([]rune(block)) <= maxChars {
		return []string{block}
	}
	var parts []string
	var current []string
	currentChars := 0
	for _, line := range strings.Split(block, "\n") {
		size := len([]rune(line)) + 1
		if size > maxChars {
			if len(current) > 0 {
				parts = append(parts, strings.Join(current, "\n"))
				current = nil
				currentChars = 0
			}
			runes := []rune(line)
			for len(runes) > maxChars {
				parts = append(parts, string(runes[:maxChars]))
				runes = runes[maxChars:]
			}
			if len(runes) > 0 {
				current = append(current, string(runes))
				currentChars = len(runes) + 1
			}
			continue
		}
		if currentChars+size > maxChars {
			parts = append(parts, strings.Join(current, "\n"))
			current = nil
			currentChars = 0
		}
		current = append(current, line)
		currentChars += size
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, "\n"))
	}
	return parts
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
