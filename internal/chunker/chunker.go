package chunker

import (
	"crypto/sha256"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/dshills/hybridrag/pkg/types"
)

const (
	// DefaultMaxSize is the maximum chunk length in characters
	DefaultMaxSize = 1000

	// DefaultOverlapWords is how many trailing words of a flushed prose chunk seed the next one
	DefaultOverlapWords = 40

	// DefaultMinSplitOffset is the earliest position a hard split may cut at
	DefaultMinSplitOffset = 100

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4

	// SheetMarker starts a new sheet in tabular text
	SheetMarker = "Sheet:"
)

// ErrEmptyText is returned for empty or whitespace-only input
var ErrEmptyText = types.NewError(types.KindInvalidInput, nil, "document text is empty")

// Config holds chunking limits. Zero fields take their defaults.
type Config struct {
	MaxSize        int
	OverlapWords   int
	MinSplitOffset int
}

// Chunker divides extracted document text into bounded chunks
type Chunker struct {
	maxSize        int
	overlapWords   int
	minSplitOffset int
}

// New creates a new Chunker instance
func New(cfg Config) *Chunker {
	c := &Chunker{
		maxSize:        cfg.MaxSize,
		overlapWords:   cfg.OverlapWords,
		minSplitOffset: cfg.MinSplitOffset,
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxSize
	}
	if c.overlapWords < 0 {
		c.overlapWords = 0
	} else if cfg.OverlapWords == 0 {
		c.overlapWords = DefaultOverlapWords
	}
	if c.minSplitOffset <= 0 {
		c.minSplitOffset = DefaultMinSplitOffset
	}
	return c
}

// MaxSize returns the configured chunk length limit
func (c *Chunker) MaxSize() int {
	return c.maxSize
}

// Split chunks text and returns the chunks in order
func (c *Chunker) Split(text string, tabular bool) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	var chunks []string
	for chunk := range c.All(text, tabular) {
		chunks = append(chunks, chunk)
	}
	// Tabular text made only of sheet markers has nothing to index
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}
	return chunks, nil
}

// All returns the chunk sequence for text. Empty input yields nothing.
func (c *Chunker) All(text string, tabular bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		if tabular {
			c.chunkTabular(text, yield)
			return
		}
		c.chunkProse(text, yield)
	}
}

// chunkProse accumulates sentence-like units into chunks with word overlap
func (c *Chunker) chunkProse(text string, yield func(string) bool) bool {
	var buf string
	for _, unit := range splitUnits(text) {
		for _, piece := range c.hardSplit(unit, c.maxSize) {
			switch {
			case buf == "":
				buf = piece
			case runeLen(buf)+1+runeLen(piece) <= c.maxSize:
				buf += " " + piece
			default:
				if !yield(buf) {
					return false
				}
				buf = c.seed(buf, piece)
			}
		}
	}
	if buf != "" {
		return yield(buf)
	}
	return true
}

// seed starts the next buffer with the trailing words of flushed, dropping
// words from the front until the overlap and next fit within the limit.
func (c *Chunker) seed(flushed, next string) string {
	words := strings.Fields(flushed)
	if len(words) > c.overlapWords {
		words = words[len(words)-c.overlapWords:]
	}
	for len(words) > 0 {
		overlap := strings.Join(words, " ")
		if runeLen(overlap)+1+runeLen(next) <= c.maxSize {
			return overlap + " " + next
		}
		words = words[1:]
	}
	return next
}

// chunkTabular emits chunks per sheet, each starting with the sheet's header line
func (c *Chunker) chunkTabular(text string, yield func(string) bool) bool {
	for _, sheet := range splitSheets(text) {
		if !c.chunkSheet(sheet, yield) {
			return false
		}
	}
	return true
}

func (c *Chunker) chunkSheet(lines []string, yield func(string) bool) bool {
	header := lines[0]
	if runeLen(header) > c.maxSize/2 {
		header = c.hardSplit(header, c.maxSize/2)[0]
	}
	rowBudget := c.maxSize - runeLen(header) - 1

	buf := header
	hasRows := false
	for _, row := range lines[1:] {
		for _, piece := range c.hardSplit(row, rowBudget) {
			if hasRows && runeLen(buf)+1+runeLen(piece) > c.maxSize {
				if !yield(buf) {
					return false
				}
				buf = header
				hasRows = false
			}
			buf += "\n" + piece
			hasRows = true
		}
	}
	return yield(buf)
}

// hardSplit cuts s into pieces of at most size characters, preferring the
// last newline or space at or after the minimum split offset.
func (c *Chunker) hardSplit(s string, size int) []string {
	size = max(size, 1)
	if runeLen(s) <= size {
		return []string{s}
	}
	minOffset := min(c.minSplitOffset, size/2)

	var pieces []string
	rest := []rune(s)
	for len(rest) > size {
		cut := size
		for i := size; i >= minOffset && i > 0; i-- {
			if i < len(rest) && (rest[i] == ' ' || rest[i] == '\n') {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(rest[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " \n\t"))
	}
	if piece := strings.TrimSpace(string(rest)); piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}

// splitUnits breaks text after '.', '!', '?' and newlines, trimming each unit
func splitUnits(text string) []string {
	var units []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			end := i + utf8.RuneLen(r)
			if u := strings.TrimSpace(text[start:end]); u != "" {
				units = append(units, u)
			}
			start = end
		}
	}
	if u := strings.TrimSpace(text[start:]); u != "" {
		units = append(units, u)
	}
	return units
}

// splitSheets groups non-empty lines by sheet. A line starting with
// SheetMarker opens a new sheet; text before any marker is its own sheet.
func splitSheets(text string) [][]string {
	var sheets [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r \t")
		if strings.HasPrefix(strings.TrimSpace(line), SheetMarker) {
			if len(current) > 0 {
				sheets = append(sheets, current)
			}
			current = nil
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sheets = append(sheets, current)
	}
	return sheets
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// ComputeChunkHash calculates SHA-256 hash of chunk content
func ComputeChunkHash(content string) [32]byte {
	return sha256.Sum256([]byte(content))
}

// EstimateTokenCount estimates token count using chars/4 heuristic
func EstimateTokenCount(text string) int {
	return (runeLen(text) + TokensPerChar - 1) / TokensPerChar
}
