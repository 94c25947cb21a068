package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitShortDocument(t *testing.T) {
	c := NewChunker(1000)
	chunks := c.Split("just a short paragraph")
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "just a short paragraph")
}

func TestSplitHeadingStartsNewChunk(t *testing.T) {
	c := NewChunker(1000)
	md := "# First\n\nalpha text\n\n# Second\n\nbeta text"
	chunks := c.Split(md)
	require.Len(t, chunks, 2)
	require.Contains(t, chunks[0], "Heading: First")
	require.Contains(t, chunks[0], "alpha text")
	require.Contains(t, chunks[1], "Heading: Second")
	require.Contains(t, chunks[1], "beta text")
}

func TestSplitHeadingContextCarried(t *testing.T) {
	c := NewChunker(40)
	md := "## Topic\n\n" + strings.Repeat("aaaa ", 8) + "\n\n" + strings.Repeat("bbbb ", 8)
	chunks := c.Split(md)
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, chunk := range chunks {
		require.True(t, strings.HasPrefix(chunk, "Heading: Topic"))
	}
}

func TestSplitRespectsBudget(t *testing.T) {
	c := NewChunker(100)
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("a paragraph of modest length here\n\n")
	}
	chunks := c.Split(sb.String())
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		// heading prefix is excluded from the budget, none present here
		require.LessOrEqual(t, len([]rune(chunk)), 110)
	}
}

func TestSplitOversizedSingleBlock(t *testing.T) {
	c := NewChunker(50)
	chunks := c.Split(strings.Repeat("x", 200))
	require.Len(t, chunks, 4)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 50)
	}
}

func TestSplitKeepsCodeFence(t *testing.T) {
	c := NewChunker(1000)
	md := "intro\n\n```go\nfmt.Println(\"hi\")\n```\n\noutro"
	chunks := c.Split(md)
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "```go")
	require.Contains(t, chunks[0], "fmt.Println")
}

func TestSplitEmptyInput(t *testing.T) {
	c := NewChunker(1000)
	require.Empty(t, c.Split("   \n  "))
}
