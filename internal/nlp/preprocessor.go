package nlp

import (
	"regexp"
	"strings"
	"unicode"
)

// Preprocessor turns raw comments into cleaned token strings ready for
// vectorization: lowercasing, URL/mention/markup removal, tokenization,
// stopword and short-token filtering. Comments that reduce to nothing come
// back as empty strings; the caller decides what to drop.
type Preprocessor struct {
	minTokenLength int
	stopwords      map[string]struct{}

	// progressEvery controls how often ProcessBatch reports progress.
	progressEvery int
}

var (
	urlRe       = regexp.MustCompile(`https?://\S+|www\.\S+`)
	mentionRe   = regexp.MustCompile(`@\S+`)
	timestampRe = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
)

// NewPreprocessor builds a preprocessor for the given language ("en", "fr"
// or "auto"). "auto" keeps both stopword lists active.
func NewPreprocessor(language string) *Preprocessor {
	sw := make(map[string]struct{})
	add := func(words []string) {
		for _, w := range words {
			sw[w] = struct{}{}
		}
	}
	switch language {
	case "en":
		add(stopwordsEN)
	case "fr":
		add(stopwordsFR)
	default:
		add(stopwordsEN)
		add(stopwordsFR)
	}
	return &Preprocessor{
		minTokenLength: 2,
		stopwords:      sw,
		progressEvery:  100,
	}
}

// ProcessBatch cleans every document, reporting progress as a 0-100
// percentage through onProgress.
func (p *Preprocessor) ProcessBatch(docs []string, onProgress func(pct int, message string)) []string {
	total := len(docs)
	processed := make([]string, total)
	for i, doc := range docs {
		if onProgress != nil && i%p.progressEvery == 0 && total > 0 {
			pct := i * 100 / total
			onProgress(pct, "Preprocessing comments...")
		}
		processed[i] = p.Process(doc)
	}
	if onProgress != nil {
		onProgress(100, "Preprocessing done")
	}
	return processed
}

// Process cleans a single document into a space-joined token string.
func (p *Preprocessor) Process(text string) string {
	tokens := p.Tokenize(CleanText(text))
	kept := tokens[:0]
	for _, tok := range tokens {
		if len([]rune(tok)) < p.minTokenLength {
			continue
		}
		if _, stop := p.stopwords[tok]; stop {
			continue
		}
		if isNumeric(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// CleanText lowercases and strips URLs, mentions, video timestamps and
// anything that is not a letter.
func CleanText(text string) string {
	text = strings.ToLower(text)
	text = urlRe.ReplaceAllString(text, " ")
	text = mentionRe.ReplaceAllString(text, " ")
	text = timestampRe.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '\'' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// Tokenize splits cleaned text on whitespace.
func (p *Preprocessor) Tokenize(text string) []string {
	return strings.Fields(text)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// Stats summarizes what preprocessing did to a corpus.
type Stats struct {
	OriginalDocuments  int     `json:"original_documents"`
	ProcessedDocuments int     `json:"processed_documents"`
	EmptyDocuments     int     `json:"empty_documents"`
	AvgLengthOriginal  float64 `json:"avg_length_original"`
	AvgTokensPerDoc    float64 `json:"avg_tokens_per_doc"`
}

// Statistics compares the original corpus with its processed counterpart.
// processed may be shorter than original when empty documents were dropped.
func (p *Preprocessor) Statistics(original, processed []string) Stats {
	st := Stats{
		OriginalDocuments:  len(original),
		ProcessedDocuments: len(processed),
		EmptyDocuments:     len(original) - len(processed),
	}
	if len(original) > 0 {
		totalLen := 0
		for _, d := range original {
			totalLen += len([]rune(d))
		}
		st.AvgLengthOriginal = float64(totalLen) / float64(len(original))
	}
	if len(processed) > 0 {
		totalTokens := 0
		for _, d := range processed {
			totalTokens += len(strings.Fields(d))
		}
		st.AvgTokensPerDoc = float64(totalTokens) / float64(len(processed))
	}
	return st
}
