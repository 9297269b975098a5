package ingest

import (
	"strings"
	"testing"
)

func TestSegment_Disabled(t *testing.T) {
	chunks := Segment("some long text here", SegmentPolicy{Enabled: false})
	if len(chunks) != 1 || chunks[0] != "some long text here" {
		t.Errorf("disabled segmenter must pass through: %v", chunks)
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	chunks := Segment("", SegmentPolicy{Enabled: true, ChunkSize: 10})
	if len(chunks) != 1 || chunks[0] != "" {
		t.Errorf("empty input should yield a single empty chunk: %q", chunks)
	}
}

func TestSegment_ShortInputSingleChunk(t *testing.T) {
	chunks := Segment("short", SegmentPolicy{Enabled: true, ChunkSize: 100})
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Errorf("got %v", chunks)
	}
}

func TestSegment_ReconstructionNoOverlap(t *testing.T) {
	text := "First paragraph with several words.\n\nSecond paragraph. It has two sentences.\n\nThird one is longer and just keeps going with more and more words to force a split somewhere."
	chunks := Segment(text, SegmentPolicy{Enabled: true, ChunkSize: 40, ChunkOverlap: 0})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Errorf("concatenated chunks do not reconstruct input:\n%q", strings.Join(chunks, ""))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 40 {
			t.Errorf("chunk %d exceeds size: %d runes", i, len([]rune(c)))
		}
	}
}

func TestSegment_OverlapRepeatsBoundary(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 10)
	overlap := 5
	chunks := Segment(text, SegmentPolicy{Enabled: true, ChunkSize: 30, ChunkOverlap: overlap})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		n := overlap
		if len(prev) < n {
			n = len(prev)
		}
		if string(prev[len(prev)-n:]) != string(cur[:n]) {
			t.Errorf("chunk %d does not start with predecessor's %d-rune suffix", i, n)
		}
		rebuilt.WriteString(string(cur[n:]))
	}
	if rebuilt.String() != text {
		t.Error("overlap-discounted concatenation does not reconstruct input")
	}
}

func TestSegment_NoSeparatorFallsBackToRunes(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := Segment(text, SegmentPolicy{Enabled: true, ChunkSize: 10, ChunkOverlap: 0})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if strings.Join(chunks, "") != text {
		t.Error("rune fallback lost characters")
	}
}

func TestSegment_PreservesOrder(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	chunks := Segment(text, SegmentPolicy{Enabled: true, ChunkSize: 12, ChunkOverlap: 0})
	joined := strings.Join(chunks, "")
	if joined != text {
		t.Fatalf("order or content lost: %q", joined)
	}
}

func TestSegment_OverlapStaysWithinChunkSize(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 10)
	size := 30
	chunks := Segment(text, SegmentPolicy{Enabled: true, ChunkSize: size, ChunkOverlap: 5})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > size {
			t.Errorf("chunk %d exceeds ChunkSize with overlap applied: %d runes", i, n)
		}
	}
}
