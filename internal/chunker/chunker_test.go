package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentences builds n sentences whose body is width characters of letter.
func sentences(n, width int, letter string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strings.Repeat(letter, width)
	}
	return strings.Join(parts, ". ")
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	for _, text := range []string{"", "Hello there. General Kenobi.", strings.Repeat("x", 5000)} {
		assert.Equal(t, []string{text}, Split(text, 5000))
	}
}

func TestSplit_TwelveThousandCharactersMakesThreeChunks(t *testing.T) {
	// 120 pieces of 98 chars + ". " = 12000 characters minus the final delimiter
	text := sentences(120, 98, "a")
	require.Equal(t, 11998, len(text))

	chunks := Split(text, 5000)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 5000)
	}
	assert.Equal(t, text, strings.Join(chunks, " "))
}

func TestSplit_RespectsLimitAndReconstructs(t *testing.T) {
	text := "The meeting opened at nine. Budget was discussed at length. " +
		"Marketing asked for more headcount. Engineering disagreed. " +
		"A follow-up was scheduled for Friday. Everyone left happy."
	for _, limit := range []int{40, 45, 60, 100} {
		chunks := Split(text, limit)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), limit, "limit %d chunk %q", limit, c)
		}
		assert.Equal(t, text, strings.Join(chunks, " "), "limit %d", limit)
	}
}

func TestSplit_OversizedSentenceStandsAlone(t *testing.T) {
	long := strings.Repeat("z", 80)
	text := "Short one. " + long + ". Tail"

	chunks := Split(text, 40)
	require.Equal(t, []string{"Short one.", long + ".", "Tail"}, chunks)
}

func TestSplit_ClosingPeriodMayExceedLimitByOne(t *testing.T) {
	chunks := Split("aaaaa. bbbbb", 5)
	assert.Equal(t, []string{"aaaaa.", "bbbbb"}, chunks)
	assert.Equal(t, 6, utf8.RuneCountInString(chunks[0]))
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	text := sentences(4, 9, "é") // 4*9 runes + 3*2 delimiter runes = 42 runes, 78 bytes
	chunks := Split(text, 42)
	assert.Equal(t, []string{text}, chunks)
}

func TestSplit_Deterministic(t *testing.T) {
	text := sentences(300, 37, "q")
	first := Split(text, 1000)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Split(text, 1000))
	}
}

func TestSplit_NonPositiveLimitUsesDefault(t *testing.T) {
	text := sentences(120, 98, "b")
	assert.Equal(t, Split(text, DefaultMaxChunkSize), Split(text, 0))
}
