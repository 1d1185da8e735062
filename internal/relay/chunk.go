package relay

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize fits one OLED page.
const DefaultChunkSize = 120

// ChunkText splits text on whitespace and packs words greedily, joined by
// single spaces, into chunks of at most max runes. A word longer than max
// becomes a chunk of its own.
func ChunkText(text string, max int) []string {
	if max <= 0 {
		max = DefaultChunkSize
	}

	chunks := []string{}
	var cur strings.Builder
	curLen := 0
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+n+1 <= max {
			cur.WriteByte(' ')
			cur.WriteString(word)
			curLen += n + 1
			continue
		}
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(word)
		curLen = n
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
