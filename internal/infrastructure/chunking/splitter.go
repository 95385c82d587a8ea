package chunking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

const (
	StrategyChar     = "char"
	StrategySentence = "sentence"

	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

var sentenceBoundary = regexp.MustCompile(`[.!?][\s\p{Z}]+`)

// Splitter applies process-wide defaults to per-request chunking options.
type Splitter struct {
	defaults domain.ChunkingOptions
}

func NewSplitter(strategy string, chunkSize, overlap int) *Splitter {
	if strings.TrimSpace(strategy) == "" {
		strategy = StrategyChar
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
		overlap = DefaultOverlap
	}
	return &Splitter{
		defaults: domain.ChunkingOptions{
			Strategy:  strategy,
			ChunkSize: chunkSize,
			Overlap:   overlap,
		},
	}
}

// Chunk fills unset options from the splitter defaults. A zero ChunkSize takes both default size and overlap.
func (s *Splitter) Chunk(text string, opts domain.ChunkingOptions) ([]string, error) {
	if strings.TrimSpace(opts.Strategy) == "" {
		opts.Strategy = s.defaults.Strategy
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = s.defaults.ChunkSize
		opts.Overlap = s.defaults.Overlap
	}
	return Chunk(text, opts)
}

// Chunk splits text under the given strategy. The strategy is validated before any work is done.
func Chunk(text string, opts domain.ChunkingOptions) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Strategy)) {
	case StrategyChar:
		if err := validateWindow(opts.ChunkSize, opts.Overlap); err != nil {
			return nil, err
		}
		return splitFixed(text, opts.ChunkSize, opts.Overlap), nil
	case StrategySentence:
		return splitSentences(text), nil
	default:
		return nil, domain.WrapError(domain.ErrUnsupportedStrategy, "chunk", fmt.Errorf("strategy %q", opts.Strategy))
	}
}

func validateWindow(chunkSize, overlap int) error {
	switch {
	case chunkSize <= 0:
		return domain.WrapError(domain.ErrInvalidConfiguration, "chunk", fmt.Errorf("chunk_size must be positive, got %d", chunkSize))
	case overlap < 0:
		return domain.WrapError(domain.ErrInvalidConfiguration, "chunk", fmt.Errorf("overlap must not be negative, got %d", overlap))
	case overlap >= chunkSize:
		return domain.WrapError(domain.ErrInvalidConfiguration, "chunk", fmt.Errorf("overlap %d must be smaller than chunk_size %d", overlap, chunkSize))
	}
	return nil
}

// splitFixed windows are counted in runes and start at every multiple of the
// stride below the text length, so trailing windows may sit wholly inside the
// previous one. Chunks are not trimmed so that stripping each later chunk's
// overlap prefix reconstructs the input.
func splitFixed(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{}
	}

	step := chunkSize - overlap
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func splitSentences(text string) []string {
	out := make([]string, 0, 8)
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		out = appendTrimmed(out, text[start:loc[0]+1])
		start = loc[1]
	}
	return appendTrimmed(out, text[start:])
}

func appendTrimmed(dst []string, fragment string) []string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return dst
	}
	return append(dst, fragment)
}
