package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/faults"
)

// DocKind selects the splitting policy.
type DocKind string

const (
	KindMarkdown DocKind = "markdown"
	KindGeneric  DocKind = "generic"
)

// ComputeContentHash digests raw text. The hash doubles as the change
// detector during reconcile, so it must be stable across runs.
func ComputeContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// DetectKind picks the splitter from the document name and shape of the text.
func DetectKind(name string, text string) DocKind {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".md" || ext == ".markdown" {
		return KindMarkdown
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			return KindMarkdown
		}
	}
	return KindGeneric
}

// Split turns raw text into ordered chunk texts. Markdown-like input gets
// larger chunks with boundaries preferred at headings and paragraph breaks;
// everything else goes through the generic recursive splitter.
func Split(text string, kind DocKind) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, faults.Newf(faults.KindEmptyDocument, "document is empty after trimming, nothing to index")
	}

	switch kind {
	case KindMarkdown:
		separators := []string{"\n## ", "\n# ", "\n\n", "\n", ". ", " ", ""}
		return splitTextIntoChunks(trimmed, config.MarkdownChunkSize, config.MarkdownChunkOverlap, separators), nil
	default:
		separators := []string{"\n\n", "\n", ". ", " ", ""}
		return splitTextIntoChunks(trimmed, config.GenericChunkSize, config.GenericChunkOverlap, separators), nil
	}
}

//splitter

func splitTextIntoChunks(text string, limit int, overlap int, separators []string) []string {
	// If text is already small enough, just return it
	if len(text) <= limit {
		return []string{text}
	}

	// Separators are ordered from "best" to "worst" for semantic meaning
	var splitChar string
	found := false
	for _, s := range separators {
		if s != "" && strings.Contains(text, s) {
			splitChar = s
			found = true
			break
		}
	}

	if !found {
		return hardCut(text, limit, overlap)
	}

	var chunks []string
	parts := strings.Split(text, splitChar)
	var currentChunk strings.Builder

	for _, part := range parts {
		// oversized single part gets hard cut rather than blowing the limit
		if len(part) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
				currentChunk.Reset()
			}
			chunks = append(chunks, hardCut(part, limit, overlap)...)
			continue
		}

		if currentChunk.Len()+len(part)+len(splitChar) > limit {
			if currentChunk.Len() > 0 {
				chunks = append(chunks, currentChunk.String())
			}

			// Handle overlap: start the next chunk with the end of the previous one
			overlapContent := ""
			if currentChunk.Len() > overlap {
				overlapContent = currentChunk.String()[currentChunk.Len()-overlap:]
			}

			currentChunk.Reset()
			currentChunk.WriteString(overlapContent)
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString(splitChar)
		}
		currentChunk.WriteString(part)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}

func hardCut(text string, limit int, overlap int) []string {
	stride := limit - overlap
	if stride <= 0 {
		stride = limit
	}
	var chunks []string
	for start := 0; start < len(text); start += stride {
		end := start + limit
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
