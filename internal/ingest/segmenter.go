// Package ingest drives note ingestion: segmentation, embedding, and
// dual-store writes.
package ingest

import "strings"

// SegmentPolicy controls how input text is split into chunks.
// Sizes are measured in runes.
type SegmentPolicy struct {
	Enabled      bool
	ChunkSize    int
	ChunkOverlap int
}

// separators in priority order: paragraph, line, sentence, word, character.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Segment splits text into an ordered sequence of chunks under the policy.
// When splitting is disabled the input is returned unchanged as a single
// chunk (including empty input). When enabled, text is divided recursively
// on the separator priority list into base pieces of at most
// ChunkSize-ChunkOverlap runes, then each chunk after the first is prefixed
// with the last ChunkOverlap runes of its predecessor, so no emitted chunk
// exceeds ChunkSize runes. Discounting that overlap, concatenating the
// chunks reconstructs the input exactly.
func Segment(text string, policy SegmentPolicy) []string {
	if !policy.Enabled {
		return []string{text}
	}
	size := policy.ChunkSize
	if size <= 0 {
		size = 500
	}
	overlap := policy.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	if len([]rune(text)) <= size {
		return []string{text}
	}
	// The overlap prefix counts against the chunk budget.
	base := splitRecursive(text, size-overlap, separators)
	base = mergePieces(base, size-overlap)
	if overlap == 0 {
		return base
	}
	chunks := make([]string, len(base))
	chunks[0] = base[0]
	for i := 1; i < len(base); i++ {
		prev := []rune(base[i-1])
		tail := prev
		if len(prev) > overlap {
			tail = prev[len(prev)-overlap:]
		}
		chunks[i] = string(tail) + base[i]
	}
	return chunks
}

// splitRecursive divides text on the first separator present, keeping the
// separator attached to the preceding piece so no characters are lost.
// Pieces still over the limit are split again with lower-priority separators.
func splitRecursive(text string, limit int, seps []string) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	sep := seps[0]
	rest := seps[1:]
	if sep == "" {
		return splitRunes(text, limit)
	}
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return splitRecursive(text, limit, rest)
	}
	var out []string
	for _, part := range parts {
		if len([]rune(part)) > limit {
			out = append(out, splitRecursive(part, limit, rest)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// splitRunes is the character-level fallback: fixed windows of limit runes.
func splitRunes(s string, limit int) []string {
	runes := []rune(s)
	var out []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// mergePieces greedily joins adjacent pieces while staying within limit, so
// splitting on a high-priority separator does not produce needlessly tiny chunks.
func mergePieces(pieces []string, limit int) []string {
	var out []string
	var current string
	currentLen := 0
	for _, p := range pieces {
		pLen := len([]rune(p))
		if currentLen > 0 && currentLen+pLen > limit {
			out = append(out, current)
			current = ""
			currentLen = 0
		}
		current += p
		currentLen += pLen
	}
	if currentLen > 0 || len(out) == 0 {
		out = append(out, current)
	}
	return out
}
