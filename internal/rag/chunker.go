package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// TokenCodec lets the chunker measure windows in tokens instead of runes.
type TokenCodec interface {
	EncodeIDs(text string) []int
	DecodeIDs(ids []int) string
}

type Chunker struct {
	size    int
	overlap int
	codec   TokenCodec
}

type ChunkerOption func(*Chunker)

func WithWindow(size, overlap int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
		if overlap >= 0 && overlap < c.size {
			c.overlap = overlap
		}
	}
}

func WithTokens(codec TokenCodec) ChunkerOption {
	return func(c *Chunker) { c.codec = codec }
}

func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = 0
	}
	return c
}

// Split cuts text into windows of c.size units, each starting c.size-c.overlap
// units after the previous one. The last window may be shorter. Windows with
// no visible characters are dropped.
func (c *Chunker) Split(text string) []string {
	if c.codec != nil {
		ids := c.codec.EncodeIDs(text)
		var out []string
		for _, w := range windows(len(ids), c.size, c.overlap) {
			// Byte-level tokens can cut a rune at either edge of a window.
			// The fragments are dropped.
			appendVisible(&out, strings.ToValidUTF8(c.codec.DecodeIDs(ids[w[0]:w[1]]), ""))
		}
		return out
	}

	if utf8.RuneCountInString(text) == 0 {
		return nil
	}
	runes := []rune(text)
	var out []string
	for _, w := range windows(len(runes), c.size, c.overlap) {
		appendVisible(&out, string(runes[w[0]:w[1]]))
	}
	return out
}

func windows(n, size, overlap int) [][2]int {
	var out [][2]int
	stride := size - overlap
	for start := 0; start < n; start += stride {
		end := start + size
		if end >= n {
			out = append(out, [2]int{start, n})
			break
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func appendVisible(out *[]string, s string) {
	if strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) >= 0 {
		*out = append(*out, s)
	}
}
