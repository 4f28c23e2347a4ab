package nlp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "GREAT Video", "great video"},
		{"strips urls", "watch this https://youtu.be/abc123 now", "watch this   now"},
		{"strips www urls", "see www.example.com please", "see   please"},
		{"strips mentions", "thanks @SomeCreator for this", "thanks   for this"},
		{"strips timestamps", "best part at 1:23 and 12:34:56", "best part at   and  "},
		{"punctuation to spaces", "wow!!! so, good...", "wow    so  good   "},
		{"keeps apostrophes", "don't stop", "don't stop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestProcess(t *testing.T) {
	p := NewPreprocessor("en")
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops stopwords", "this is the best tutorial", "best tutorial"},
		{"drops short tokens", "g o o d video", "video"},
		{"drops pure numbers", "chapter 42 starts here", "chapter starts"},
		{"empty when nothing survives", "it is the a an", ""},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Process(tt.in))
		})
	}
}

func TestLanguageSelection(t *testing.T) {
	en := NewPreprocessor("en")
	fr := NewPreprocessor("fr")
	auto := NewPreprocessor("auto")

	// "les" is a French stopword, "the" an English one.
	assert.Equal(t, "les meilleures videos", en.Process("the les meilleures videos"))
	assert.Equal(t, "the meilleures videos", fr.Process("the les meilleures videos"))
	assert.Equal(t, "meilleures videos", auto.Process("the les meilleures videos"))
}

func TestProcessBatchProgress(t *testing.T) {
	p := NewPreprocessor("en")
	docs := make([]string, 250)
	for i := range docs {
		docs[i] = fmt.Sprintf("interesting comment number %d here", i)
	}

	var reported []int
	out := p.ProcessBatch(docs, func(pct int, message string) {
		reported = append(reported, pct)
		assert.NotEmpty(t, message)
	})

	assert.Len(t, out, 250)
	assert.NotEmpty(t, reported)
	assert.Equal(t, 100, reported[len(reported)-1])
	for i := 1; i < len(reported); i++ {
		assert.GreaterOrEqual(t, reported[i], reported[i-1], "progress must not regress")
	}
}

func TestProcessBatchNilCallback(t *testing.T) {
	p := NewPreprocessor("en")
	out := p.ProcessBatch([]string{"nice video"}, nil)
	assert.Equal(t, []string{"nice video"}, out)
}

func TestStatistics(t *testing.T) {
	p := NewPreprocessor("en")
	original := []string{"aaaa", "bbbb", "cccc", "dddd"}
	processed := []string{"one two", "three"}

	st := p.Statistics(original, processed)
	assert.Equal(t, 4, st.OriginalDocuments)
	assert.Equal(t, 2, st.ProcessedDocuments)
	assert.Equal(t, 2, st.EmptyDocuments)
	assert.InDelta(t, 4.0, st.AvgLengthOriginal, 0.001)
	assert.InDelta(t, 1.5, st.AvgTokensPerDoc, 0.001)

	empty := p.Statistics(nil, nil)
	assert.Zero(t, empty.AvgLengthOriginal)
	assert.Zero(t, empty.AvgTokensPerDoc)
}
