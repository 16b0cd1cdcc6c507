package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	DefaultTargetChars  = 1000
	DefaultOverlapChars = 100
)

type Config struct {
	TargetChars  int
	OverlapChars int
}

// Chunk is one bounded segment of document content, pre-embedding.
type Chunk struct {
	Position   int
	Content    string
	TokenCount int
}

// Chunker splits document content into segments of roughly TargetChars
// characters. Markdown block boundaries are respected where possible, and
// consecutive chunks share an OverlapChars tail so semantic context is not
// severed at arbitrary cut points.
type Chunker struct {
	target  int
	overlap int
}

func New(cfg Config) *Chunker {
	target := cfg.TargetChars
	if target <= 0 {
		target = DefaultTargetChars
	}
	overlap := cfg.OverlapChars
	if overlap < 0 || overlap >= target {
		overlap = DefaultOverlapChars
		if overlap >= target {
			overlap = target / 10
		}
	}
	return &Chunker{target: target, overlap: overlap}
}

// Split returns the chunk sequence for content. Empty or whitespace-only
// content yields no chunks; that is a valid outcome, not an error.
func (c *Chunker) Split(content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	frags := fragments(content)

	var chunks []Chunk
	var buf []string
	var bufLen int
	fresh := false
	pos := 0

	emit := func(text string) {
		chunks = append(chunks, Chunk{
			Position:   pos,
			Content:    text,
			TokenCount: estimateTokens(text),
		})
		pos++
	}

	flush := func() {
		if bufLen == 0 || !fresh {
			buf, bufLen, fresh = nil, 0, false
			return
		}
		emit(strings.Join(buf, "\n\n"))
		if c.overlap > 0 && len(buf) > 1 {
			var keep []string
			kept := 0
			for i := len(buf) - 1; i >= 0 && kept < c.overlap; i-- {
				keep = append([]string{buf[i]}, keep...)
				kept += runeLen(buf[i])
			}
			if len(keep) == len(buf) {
				keep, kept = nil, 0
			}
			buf, bufLen = keep, kept
		} else {
			buf, bufLen = nil, 0
		}
		fresh = false
	}

	for _, frag := range frags {
		fragLen := runeLen(frag)
		if fragLen >= c.target {
			flush()
			for _, window := range c.slide(frag) {
				emit(window)
			}
			continue
		}
		if bufLen > 0 && bufLen+fragLen > c.target {
			if fresh {
				flush()
			} else {
				// buffer holds only a stale overlap seed; drop it rather
				// than emit a chunk made purely of repeated text
				buf, bufLen = nil, 0
			}
		}
		buf = append(buf, frag)
		bufLen += fragLen
		fresh = true
	}
	flush()
	return chunks
}

// slide cuts an oversized fragment into target-length windows stepping by
// target-overlap, so adjacent windows share the overlap span.
func (c *Chunker) slide(frag string) []string {
	runes := []rune(frag)
	step := c.target - c.overlap
	if step <= 0 {
		step = c.target
	}
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + c.target
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return windows
}

// fragments parses content as markdown and returns the text of each
// top-level block. Plain text is a degenerate markdown document, so the
// same path covers both.
func fragments(content string) []string {
	md := goldmark.New()
	reader := text.NewReader([]byte(content))
	doc := md.Parser().Parse(reader)

	var frags []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(reader.Source()))
			}
			code := strings.TrimSpace(sb.String())
			if code != "" {
				frags = append(frags, code)
			}
		default:
			txt := extractText(node, reader.Source())
			if txt != "" {
				frags = append(frags, txt)
			}
		}
	}
	if len(frags) == 0 {
		frags = append(frags, strings.TrimSpace(content))
	}
	return frags
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
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

// estimateTokens uses a cheap heuristic: whitespace words for latin text
// plus one token per non-ASCII rune (CJK and similar scripts).
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func runeLen(s string) int {
	return len([]rune(s))
}
