package flashcards

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty",
			input: "",
			want:  []string{},
		},
		{
			name:  "two sentences",
			input: "The mitochondria is the powerhouse of the cell. It produces ATP through respiration.",
			want: []string{
				"The mitochondria is the powerhouse of the cell.",
				"It produces ATP through respiration.",
			},
		},
		{
			name:  "short sentences dropped",
			input: "Hi. Ok. This one has enough words!",
			want:  []string{"This one has enough words!"},
		},
		{
			name:  "exactly three words dropped",
			input: "Cells divide quickly. Plants need light to grow?",
			want:  []string{"Plants need light to grow?"},
		},
		{
			name:  "no space after mark is not a boundary",
			input: "Version 2.5 of the protocol shipped. The rest followed later.",
			want:  []string{"Version 2.5 of the protocol shipped.", "The rest followed later."},
		},
		{
			name:  "whitespace run consumed",
			input: "One two three four!  \n  Five six seven eight?",
			want:  []string{"One two three four!", "Five six seven eight?"},
		},
		{
			name:  "no terminal punctuation",
			input: "photosynthesis converts light into chemical energy",
			want:  []string{"photosynthesis converts light into chemical energy"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Segment(tc.input))
		})
	}
}

func TestSegment_UnpunctuatedWordCount(t *testing.T) {
	for n := 0; n <= 8; n++ {
		words := make([]string, n)
		for i := range words {
			words[i] = "word"
		}
		got := Segment(strings.Join(words, " "))

		if n >= MinSentenceWords {
			assert.Len(t, got, 1, "n=%d", n)
		} else {
			assert.Empty(t, got, "n=%d", n)
		}
	}
}
