package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitEmptyContent(t *testing.T) {
	c := New(Config{})
	require.Nil(t, c.Split(""))
	require.Nil(t, c.Split("   \n\t  \n"))
}

func TestSplitLongPlainText(t *testing.T) {
	// 5000 chars on one line, no block boundaries to cut at
	content := strings.Repeat("ab cd ", 833) + "ab"
	require.Equal(t, 5000, len(content))

	c := New(Config{TargetChars: 1000, OverlapChars: 100})
	chunks := c.Split(content)
	require.Len(t, chunks, 6)

	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Position)
		require.LessOrEqual(t, len([]rune(chunk.Content)), 1000)
		require.Greater(t, chunk.TokenCount, 0)
	}
	// adjacent windows share the overlap span
	for i := 0; i < len(chunks)-1; i++ {
		cur := []rune(chunks[i].Content)
		next := []rune(chunks[i+1].Content)
		tail := string(cur[len(cur)-100:])
		head := string(next[:100])
		require.Equal(t, tail, head)
	}
}

func TestSplitPacksParagraphs(t *testing.T) {
	para := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod ", 4))
	require.Less(t, len(para), 300)
	paragraphs := make([]string, 5)
	for i := range paragraphs {
		paragraphs[i] = para
	}
	content := strings.Join(paragraphs, "\n\n")

	c := New(Config{TargetChars: 1000, OverlapChars: 100})
	chunks := c.Split(content)
	require.GreaterOrEqual(t, len(chunks), 2)

	// each chunk respects the target, and every paragraph landed somewhere
	joined := ""
	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk.Content)), 1000)
		joined += chunk.Content
	}
	require.Contains(t, joined, para)
}

func TestSplitParagraphOverlapSeed(t *testing.T) {
	p1 := strings.Repeat("a", 400)
	p2 := strings.Repeat("b", 400)
	p3 := strings.Repeat("c", 400)
	content := p1 + "\n\n" + p2 + "\n\n" + p3

	c := New(Config{TargetChars: 1000, OverlapChars: 300})
	chunks := c.Split(content)
	require.Len(t, chunks, 2)
	require.Equal(t, p1+"\n\n"+p2, chunks[0].Content)
	// the second chunk re-carries p2 as overlap context
	require.Equal(t, p2+"\n\n"+p3, chunks[1].Content)
}

func TestSplitKeepsCodeBlockText(t *testing.T) {
	code := "func main() {\n\tfmt.Println(\"hello\")\n}"
	content := "Intro paragraph.\n\n```go\n" + code + "\n```\n\nClosing paragraph."

	c := New(Config{TargetChars: 1000, OverlapChars: 100})
	chunks := c.Split(content)
	require.NotEmpty(t, chunks)

	var all []string
	for _, chunk := range chunks {
		all = append(all, chunk.Content)
	}
	require.Contains(t, strings.Join(all, "\n"), "fmt.Println")
}

func TestSplitShortContentSingleChunk(t *testing.T) {
	c := New(Config{TargetChars: 1000, OverlapChars: 100})
	chunks := c.Split("just a short note")
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].Position)
	require.Equal(t, "just a short note", chunks[0].Content)
	require.Equal(t, 4, chunks[0].TokenCount)
}

func TestEstimateTokensCJK(t *testing.T) {
	// non-ASCII runes count individually on top of whitespace words
	require.Equal(t, 5, estimateTokens("你好世界"))
	require.Equal(t, 4, estimateTokens("hello 世界"))
}
