package topics

import (
	"sort"
	"strings"
)

// maxFeatures caps the vocabulary so a large corpus cannot blow up the
// dense matrices the models work on.
const maxFeatures = 2000

// buildMatrix vectorizes preprocessed documents into a dense term-frequency
// matrix over an n-gram vocabulary.
func buildMatrix(docs []string, ngramMin, ngramMax int) (matrix [][]float64, vocab []string) {
	docTerms := make([][]string, len(docs))
	totals := make(map[string]int)
	for i, doc := range docs {
		terms := ngrams(strings.Fields(doc), ngramMin, ngramMax)
		docTerms[i] = terms
		for _, t := range terms {
			totals[t]++
		}
	}

	vocab = make([]string, 0, len(totals))
	for t := range totals {
		vocab = append(vocab, t)
	}
	// Most frequent first, term text as tie-break for determinism.
	sort.Slice(vocab, func(i, j int) bool {
		if totals[vocab[i]] != totals[vocab[j]] {
			return totals[vocab[i]] > totals[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > maxFeatures {
		vocab = vocab[:maxFeatures]
	}

	index := make(map[string]int, len(vocab))
	for i, t := range vocab {
		index[t] = i
	}

	matrix = make([][]float64, len(docs))
	for i, terms := range docTerms {
		row := make([]float64, len(vocab))
		for _, t := range terms {
			if j, ok := index[t]; ok {
				row[j]++
			}
		}
		matrix[i] = row
	}
	return matrix, vocab
}

func ngrams(tokens []string, min, max int) []string {
	var out []string
	for n := min; n <= max; n++ {
		if n <= 0 || n > len(tokens) {
			continue
		}
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
