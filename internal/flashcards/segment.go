package flashcards

import (
	"strings"
	"unicode"
)

// MinSentenceWords is the smallest word count a sentence needs to become a card.
const MinSentenceWords = 4

// Segment splits text into candidate sentences. A boundary is a '.', '!' or
// '?' immediately followed by whitespace: the mark stays with the sentence and
// the whitespace run is dropped. Sentences shorter than MinSentenceWords are
// discarded. Text without terminal punctuation is a single candidate.
func Segment(text string) []string {
	runes := []rune(text)
	sentences := make([]string, 0, 8)

	start := 0
	for i := 0; i < len(runes)-1; i++ {
		if !isSentenceEnd(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}

		sentences = appendSentence(sentences, string(runes[start:i+1]))

		next := i + 1
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		start = next
		i = next - 1
	}

	if start < len(runes) {
		sentences = appendSentence(sentences, string(runes[start:]))
	}

	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func appendSentence(sentences []string, candidate string) []string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || len(strings.Fields(candidate)) < MinSentenceWords {
		return sentences
	}
	return append(sentences, candidate)
}
