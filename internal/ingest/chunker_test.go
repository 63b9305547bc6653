package ingest

import (
	"strings"
	"testing"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/faults"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		docName  string
		text     string
		expected DocKind
	}{
		{"markdown extension", "notes.md", "plain text", KindMarkdown},
		{"markdown extension uppercase", "NOTES.MD", "plain text", KindMarkdown},
		{"heading line", "notes.txt", "# Title\nbody", KindMarkdown},
		{"subheading line", "notes.txt", "intro\n## Section\nbody", KindMarkdown},
		{"plain text", "notes.txt", "just words, nothing else", KindGeneric},
		{"hash inside a line", "notes.txt", "value #5 is fine", KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectKind(tt.docName, tt.text); got != tt.expected {
				t.Errorf("DetectKind(%s) = %v; want %v", tt.docName, got, tt.expected)
			}
		})
	}
}

func TestComputeContentHash(t *testing.T) {
	first := ComputeContentHash("same content")
	second := ComputeContentHash("same content")
	if first != second {
		t.Errorf("hash is not deterministic: %s vs %s", first, second)
	}

	different := ComputeContentHash("other content")
	if first == different {
		t.Error("different content produced the same hash")
	}
	if len(first) != 64 {
		t.Errorf("expected a 64-char hex digest, got %d chars", len(first))
	}
}

func TestSplit_EmptyDocument(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := Split(text, KindGeneric)
		if err == nil {
			t.Fatalf("Split(%q) returned no error", text)
		}
		if !faults.IsKind(err, faults.KindEmptyDocument) {
			t.Errorf("Split(%q) error kind = %v; want %v", text, faults.KindOf(err), faults.KindEmptyDocument)
		}
	}
}

func TestSplit_ShortText(t *testing.T) {
	chunks, err := Split("a short note", KindGeneric)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0] != "a short note" {
		t.Errorf("chunk content changed: %q", chunks[0])
	}
}

func TestSplit_LongGenericText(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.Repeat(sentence, 200)

	chunks, err := Split(text, KindGeneric)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > config.GenericChunkSize+config.GenericChunkOverlap {
			t.Errorf("chunk %d is oversized: %d chars", i, len(chunk))
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplit_MarkdownPrefersHeadings(t *testing.T) {
	var builder strings.Builder
	for i := 0; i < 10; i++ {
		builder.WriteString("## Section\n")
		builder.WriteString(strings.Repeat("content line with several words in it.\n", 10))
	}

	chunks, err := Split(builder.String(), KindMarkdown)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected heading-based splitting to produce multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > config.MarkdownChunkSize+config.MarkdownChunkOverlap {
			t.Errorf("chunk %d is oversized: %d chars", i, len(chunk))
		}
	}
}

func TestSplit_NoSeparators(t *testing.T) {
	// a single unbroken token longer than the limit must still be cut
	text := strings.Repeat("x", config.GenericChunkSize*3)

	chunks, err := Split(text, KindGeneric)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected hard cuts for unbroken text, got %d chunks", len(chunks))
	}

	var total int
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total < len(text) {
		t.Errorf("hard cuts lost content: %d chars reassembled from %d", total, len(text))
	}
}
