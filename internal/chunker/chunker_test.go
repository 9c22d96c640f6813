package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridrag/pkg/types"
)

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultMaxSize, c.maxSize)
	assert.Equal(t, DefaultOverlapWords, c.overlapWords)
	assert.Equal(t, DefaultMinSplitOffset, c.minSplitOffset)

	c = New(Config{OverlapWords: -1})
	assert.Zero(t, c.overlapWords)
}

func TestSplit_EmptyInput(t *testing.T) {
	c := New(Config{})
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := c.Split(text, false)
		assert.ErrorIs(t, err, types.ErrInvalidInput)

		_, err = c.Split(text, true)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	}
}

func TestSplit_ShortProse(t *testing.T) {
	c := New(Config{})
	chunks, err := c.Split("Payday is the 15th. Questions go to HR!", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Payday is the 15th. Questions go to HR!"}, chunks)
}

func TestSplit_ProseBoundsAndOverlap(t *testing.T) {
	c := New(Config{MaxSize: 200, OverlapWords: 5})

	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about topic %d. ", i, i%7)
	}

	chunks, err := c.Split(sb.String(), false)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 200, "chunk %d too long", i)
	}

	// Each chunk after the first starts with the last words of its predecessor
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		tail := strings.Join(prev[len(prev)-5:], " ")
		assert.True(t, strings.HasPrefix(chunks[i], tail), "chunk %d missing overlap %q", i, tail)
	}
}

func TestSplit_HardSplitsLongUnit(t *testing.T) {
	c := New(Config{MaxSize: 150, MinSplitOffset: 100})

	long := strings.Repeat("word ", 100) // one unit, no terminators
	chunks, err := c.Split(long, false)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 150)
		assert.False(t, strings.HasPrefix(chunk, " "))
	}
}

func TestSplit_HardSplitWithoutSpaces(t *testing.T) {
	c := New(Config{MaxSize: 100, OverlapWords: -1})

	chunks, err := c.Split(strings.Repeat("x", 250), false)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 50, utf8.RuneCountInString(chunks[2]))
}

func TestSplit_MultibyteCountsRunes(t *testing.T) {
	c := New(Config{MaxSize: 120})
	text := strings.Repeat("Größenänderung überprüft. ", 30)

	chunks, err := c.Split(text, false)
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 120)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := New(Config{MaxSize: 180})
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)

	first, err := c.Split(text, false)
	require.NoError(t, err)
	second, err := c.Split(text, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplit_TabularThreeSheets(t *testing.T) {
	c := New(Config{MaxSize: 1000})

	headers := []string{"employee,payday,amount", "quarter,region,revenue,notes", "sku,description,stock"}
	var sb strings.Builder
	for s, header := range headers {
		fmt.Fprintf(&sb, "Sheet: sheet-%d\n%s\n", s+1, header)
		for r := 0; r < 50; r++ {
			fmt.Fprintf(&sb, "row-%d-%d,value %d,another value %d\n", s+1, r, r*3, r*7)
		}
	}

	chunks, err := c.Split(sb.String(), true)
	require.NoError(t, err)

	perSheet := make(map[string]int)
	rows := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 1000)
		firstLine, rest, _ := strings.Cut(chunk, "\n")
		require.Contains(t, headers, firstLine, "chunk must start with a header")
		perSheet[firstLine]++
		rows += len(strings.Split(rest, "\n"))
	}

	for _, header := range headers {
		assert.GreaterOrEqual(t, perSheet[header], 1, "no chunk for %s", header)
	}
	assert.Equal(t, 150, rows, "every row emitted exactly once")
}

func TestSplit_TabularWithoutMarker(t *testing.T) {
	c := New(Config{MaxSize: 30})
	text := "id,name\n1,alpha\n2,beta\n3,gamma\n4,delta\n5,epsilon\n6,zeta\n"

	chunks, err := c.Split(text, true)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk, "id,name\n"))
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 30)
	}
}

func TestSplit_TabularLongRow(t *testing.T) {
	c := New(Config{MaxSize: 100})
	text := "h1,h2\n" + strings.Repeat("cell ", 60)

	chunks, err := c.Split(text, true)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk, "h1,h2\n"))
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 100)
	}
}

func TestSplit_TabularHeaderOnlySheet(t *testing.T) {
	c := New(Config{})
	chunks, err := c.Split("Sheet: empty\ncol_a,col_b\nSheet: full\nx,y\n1,2", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"col_a,col_b", "x,y\n1,2"}, chunks)
}

func TestSplit_TabularMarkersOnly(t *testing.T) {
	c := New(Config{})
	chunks, err := c.Split("Sheet: A\nSheet: B\n", true)
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Empty(t, chunks)
}

func TestAll_StopsEarly(t *testing.T) {
	c := New(Config{MaxSize: 50})
	text := strings.Repeat("Short sentence here. ", 50)

	n := 0
	for range c.All(text, false) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestEstimateTokenCount(t *testing.T) {
	assert.Equal(t, 0, EstimateTokenCount(""))
	assert.Equal(t, 1, EstimateTokenCount("abc"))
	assert.Equal(t, 2, EstimateTokenCount("abcdefgh"))
}

func TestComputeChunkHash(t *testing.T) {
	assert.Equal(t, ComputeChunkHash("a"), ComputeChunkHash("a"))
	assert.NotEqual(t, ComputeChunkHash("a"), ComputeChunkHash("b"))
}
