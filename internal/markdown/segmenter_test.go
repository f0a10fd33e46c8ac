package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedChunks(opts Options, chunks ...string) (Segmenter, []string) {
	s := NewSegmenter(opts)
	var out []string
	for _, c := range chunks {
		var deltas []string
		s, deltas = s.Feed(c)
		out = append(out, deltas...)
	}
	return s, out
}

func segmentAll(opts Options, chunks ...string) []string {
	s, out := feedChunks(opts, chunks...)
	_, rest := s.Finish()
	return append(out, rest...)
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func TestSegmenter_ParagraphBoundary(t *testing.T) {
	t.Parallel()

	got := segmentAll(Options{}, "First paragraph.\n\nSecond paragraph.")
	assert.Equal(t, []string{"First paragraph.\n\n", "Second paragraph."}, got)
}

func TestSegmenter_CharacterAtATime(t *testing.T) {
	t.Parallel()

	got := segmentAll(Options{}, chars("a\n\nb\n\nc")...)
	assert.Equal(t, []string{"a\n\n", "b\n\n", "c"}, got)
}

func TestSegmenter_FenceIsOneDelta(t *testing.T) {
	t.Parallel()

	input := "Text before.\n\n```python\ndef hello():\n\n    print('world')\n```\n\nText after."
	fence := "```python\ndef hello():\n\n    print('world')\n```"

	for name, chunks := range map[string][]string{
		"whole":      {input},
		"characters": chars(input),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := segmentAll(Options{}, chunks...)
			assert.Equal(t, input, strings.Join(got, ""))

			var holding []string
			for _, d := range got {
				if strings.Contains(d, "```") {
					holding = append(holding, d)
				}
			}
			require.Len(t, holding, 1)
			assert.Contains(t, holding[0], fence)
			assert.Equal(t, "Text before.\n\n", got[0])
		})
	}
}

func TestSegmenter_FenceClosingRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "longer closer",
			input: "```\na\n\nb\n`````\n\nafter",
			want:  []string{"```\na\n\nb\n`````\n", "\nafter"},
		},
		{
			name:  "shorter run is content",
			input: "````\n```\n\nstill code\n````\n\nx",
			want:  []string{"````\n```\n\nstill code\n````\n", "\nx"},
		},
		{
			name:  "other character is content",
			input: "~~~\n```\n\n~~~  \n\nx",
			want:  []string{"~~~\n```\n\n~~~  \n", "\nx"},
		},
		{
			name:  "closer with trailing text is content",
			input: "```\n``` not a closer\n\n```\n\nx",
			want:  []string{"```\n``` not a closer\n\n```\n", "\nx"},
		},
		{
			name:  "prose before opener",
			input: "Intro:\n```go\nx := 1\n```\n",
			want:  []string{"Intro:\n", "```go\nx := 1\n```\n"},
		},
		{
			name:  "unterminated fence flushed whole",
			input: "```js\nlet a;\n\nlet b;",
			want:  []string{"```js\nlet a;\n\nlet b;"},
		},
		{
			name:  "inline backticks are not a fence",
			input: "use `x`\n\nok",
			want:  []string{"use `x`\n\n", "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, segmentAll(Options{}, tt.input))
			assert.Equal(t, tt.want, segmentAll(Options{}, chars(tt.input)...), "char by char")
		})
	}
}

func TestSegmenter_FenceHoldsUntilClosed(t *testing.T) {
	t.Parallel()

	s, out := feedChunks(Options{}, "```\ncode\n\nmore\n")
	assert.Empty(t, out)
	assert.True(t, s.InFence())
	assert.Equal(t, []Fence{{Char: '`', Len: 3}}, s.Modes())

	s, out = s.Feed("```\n")
	assert.Equal(t, []string{"```\ncode\n\nmore\n```\n"}, out)
	assert.False(t, s.InFence())
}

func TestSegmenter_WordChunkingAfterThreshold(t *testing.T) {
	t.Parallel()

	s, out := feedChunks(Options{ProseFlushThreshold: 10}, "one two three four")
	assert.Equal(t, []string{"one", " ", "two", " ", "three", " "}, out)
	assert.Equal(t, "four", s.Buffered())

	_, out = feedChunks(Options{ProseFlushThreshold: 10, MaxDeltaChunkSize: 8}, "one two three four")
	assert.Equal(t, []string{"one two ", "three "}, out)

	_, out = feedChunks(Options{}, "one two three four")
	assert.Empty(t, out, "below the threshold nothing is cut")
}

func TestSegmenter_EmphasisNeverSplit(t *testing.T) {
	t.Parallel()

	s, out := feedChunks(Options{ProseFlushThreshold: 10}, "see **very bold text** and more")
	assert.Equal(t, []string{"see", " ", "**very bold text**", " ", "and", " "}, out)
	assert.Equal(t, "more", s.Buffered())

	s, out = feedChunks(Options{ProseFlushThreshold: 10}, "alpha beta **gamma delta")
	assert.Equal(t, []string{"alpha", " ", "beta", " "}, out)
	assert.Equal(t, "**gamma delta", s.Buffered())

	s, out = s.Feed(" epsilon** end")
	assert.Equal(t, []string{"**gamma delta epsilon**", " "}, out)
	assert.Equal(t, "end", s.Buffered())
}

func TestSegmenter_TableRowsNotSplit(t *testing.T) {
	t.Parallel()

	s, out := feedChunks(Options{ProseFlushThreshold: 10}, "| a | b |\n| 1 | 2 |\n| 3")
	assert.Equal(t, []string{"|", " ", "a", " ", "|", " ", "b", " ", "|", "\n", "|", " ", "1", " ", "|", " ", "2", " ", "|", "\n"}, out)
	assert.Equal(t, "| 3", s.Buffered())
}

func TestSegmenter_FeedLeavesReceiverUnchanged(t *testing.T) {
	t.Parallel()

	s0, _ := feedChunks(Options{}, "```\nbody\n")
	s1, _ := s0.Feed("```\n")
	assert.True(t, s0.InFence())
	assert.Equal(t, "```\nbody\n", s0.Buffered())
	assert.False(t, s1.InFence())
}

func TestSegmenter_ReconstructionAnyChunking(t *testing.T) {
	t.Parallel()

	input := "# Title\n\nSome *emphasis* and **bold** words, plus `code`.\n\n" +
		"~~~\nfenced ~~~ not closing\n\n~~~\n" +
		"| col | col |\n|-----|-----|\n| 1 | 2 |\n\n" +
		"A long trailing paragraph that keeps going for a while without any break at all " +
		"so that the word chunking fallback has to kick in at least once or twice. Done."

	for _, opts := range []Options{{}, {ProseFlushThreshold: 16}, {ProseFlushThreshold: 16, MaxDeltaChunkSize: 12}} {
		for size := 1; size <= 17; size++ {
			var chunks []string
			for i := 0; i < len(input); i += size {
				chunks = append(chunks, input[i:min(i+size, len(input))])
			}
			got := segmentAll(opts, chunks...)
			require.Equal(t, input, strings.Join(got, ""), "opts %+v size %d", opts, size)
			for _, d := range got {
				require.NotEmpty(t, d)
			}
		}
	}
}

func TestSegmenter_SameDeltasForAnyChunking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		opts  Options
		input string
	}{
		{
			name:  "long line at the default threshold",
			input: strings.Repeat("word ", 80) + "end.",
		},
		{
			name:  "long paragraph then short one",
			opts:  Options{ProseFlushThreshold: 16},
			input: "this paragraph runs well past the threshold before it ends.\n\nshort tail",
		},
		{
			name:  "emphasis in long prose",
			opts:  Options{ProseFlushThreshold: 16},
			input: "some words before **very bold words** and more words after it",
		},
		{
			name:  "merged chunks",
			opts:  Options{ProseFlushThreshold: 16, MaxDeltaChunkSize: 12},
			input: "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda",
		},
		{
			name:  "prose before a fence",
			opts:  Options{ProseFlushThreshold: 16, MaxDeltaChunkSize: 12},
			input: "an introduction that is long enough\n```go\nx := 1\n```\nand a closing line",
		},
		{
			name:  "unbreakable word",
			opts:  Options{ProseFlushThreshold: 16},
			input: strings.Repeat("x", 70) + " tail end",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			whole := segmentAll(tt.opts, tt.input)
			require.Equal(t, tt.input, strings.Join(whole, ""))
			assert.Equal(t, whole, segmentAll(tt.opts, chars(tt.input)...))

			var threes []string
			for i := 0; i < len(tt.input); i += 3 {
				threes = append(threes, tt.input[i:min(i+3, len(tt.input))])
			}
			assert.Equal(t, whole, segmentAll(tt.opts, threes...))
		})
	}
}

func TestSegmenter_FinishSplitsFlushingProse(t *testing.T) {
	t.Parallel()

	got := segmentAll(Options{ProseFlushThreshold: 10}, chars("one two three four")...)
	assert.Equal(t, []string{"one", " ", "two", " ", "three", " ", "four"}, got)

	// below the threshold the remainder stays one delta
	got = segmentAll(Options{}, chars("one two three four")...)
	assert.Equal(t, []string{"one two three four"}, got)
}

func TestSegmenter_RunawayWordCutAtThreshold(t *testing.T) {
	t.Parallel()

	word := strings.Repeat("x", 70)
	got := segmentAll(Options{ProseFlushThreshold: 16}, word+" tail")
	assert.Equal(t, []string{word[:16], word[16:], " ", "tail"}, got)
}
