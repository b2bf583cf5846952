package pipeline

import (
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/docuquery/policy-search/domain"
	"go.uber.org/zap"
)

// SplitterConfig bounds chunk sizes. Overlap must be smaller than Size;
// NewSplitterConfig clamps it.
type SplitterConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	MinChunkSize    int
	Separator       string
	StripWhitespace bool
	CleanupText     bool
}

func NewSplitterConfig(size, overlap, minSize int, separator string) SplitterConfig {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return SplitterConfig{
		ChunkSize:       size,
		ChunkOverlap:    overlap,
		MinChunkSize:    minSize,
		Separator:       separator,
		StripWhitespace: true,
		CleanupText:     true,
	}
}

var (
	blankLineRuns = regexp.MustCompile(`\n\s*\n`)
	spaceRuns     = regexp.MustCompile(` +`)
	spacedNewline = regexp.MustCompile(` *\n *`)
)

// CleanText normalizes whitespace deterministically: runs of blank lines
// collapse to one blank line, runs of spaces to one space, spaces adjacent
// to newlines are stripped, then the edges are trimmed when configured.
func CleanText(cfg SplitterConfig, text string) string {
	if !cfg.CleanupText {
		return text
	}
	text = blankLineRuns.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = spacedNewline.ReplaceAllString(text, "\n")
	if cfg.StripWhitespace {
		text = strings.TrimSpace(text)
	}
	return text
}

// SplitDocuments partitions each document's cleaned text into chunks of at
// most ChunkSize characters, consecutive chunks sharing exactly ChunkOverlap
// characters, cutting at the last separator inside the window when one is
// available. Chunks shorter than MinChunkSize are dropped. Each chunk copies
// the full metadata of its source document and gets a stable ID derived from
// tenant, source, position and content.
//
// The function is pure: no retained state, safe for concurrent tenant runs.
func SplitDocuments(cfg SplitterConfig, docs []domain.Document) ([]domain.Chunk, domain.SplitStats) {
	stats := domain.SplitStats{InputDocuments: len(docs)}

	var out []domain.Chunk
	for _, doc := range docs {
		text := CleanText(cfg, doc.Text)
		pieces := splitWindows(text, cfg.Separator, cfg.ChunkSize, cfg.ChunkOverlap)

		idx := 0
		for _, piece := range pieces {
			if cfg.StripWhitespace {
				piece = strings.TrimSpace(piece)
			}
			if len(piece) < cfg.MinChunkSize {
				// Policy, not an error: undersized fragments are dropped.
				continue
			}

			meta := make(map[string]string, len(doc.Metadata))
			maps.Copy(meta, doc.Metadata)

			out = append(out, domain.Chunk{
				ID:       chunkID(meta, idx, piece),
				Text:     piece,
				Metadata: meta,
			})
			stats.TotalCharacters += len(piece)
			idx++
		}
	}

	stats.OutputChunks = len(out)
	if stats.OutputChunks > 0 {
		stats.AverageChunkSize = float64(stats.TotalCharacters) / float64(stats.OutputChunks)
	}

	logger.Info("Split documents into chunks",
		zap.Int("documents", stats.InputDocuments),
		zap.Int("chunks", stats.OutputChunks))
	return out, stats
}

// splitWindows walks the text with a window of size chars. The cut lands on
// the last separator inside the window when that still leaves forward
// progress past the overlap; otherwise it is a hard cut at size. The next
// window starts exactly overlap characters before the cut, so consecutive
// windows share exactly overlap characters.
func splitWindows(text, separator string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var out []string
	i := 0
	for {
		if i+size >= len(text) {
			out = append(out, text[i:])
			return out
		}

		cut := i + size
		if separator != "" {
			if j := strings.LastIndex(text[i:i+size], separator); j > overlap {
				cut = i + j
			}
		}
		out = append(out, text[i:cut])
		i = cut - overlap
	}
}

func chunkID(meta map[string]string, position int, text string) string {
	key := meta[domain.TenantIDKey] + "|" + meta[domain.SourceKey] + "|" + strconv.Itoa(position) + "|" + text
	id, _ := odm.HashedKey(key)
	return id
}
