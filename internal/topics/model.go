package topics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownAlgorithm is returned by New for anything other than lda/nmf.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

const (
	AlgorithmLDA = "lda"
	AlgorithmNMF = "nmf"
)

// Config carries the tunables shared by both algorithms.
type Config struct {
	NumTopics int
	MaxIter   int
	NGramMin  int
	NGramMax  int
	Seed      int64
}

func (c Config) withDefaults(algorithm string) Config {
	if c.NumTopics <= 0 {
		c.NumTopics = 5
	}
	if c.MaxIter <= 0 {
		if algorithm == AlgorithmLDA {
			c.MaxIter = 20
		} else {
			c.MaxIter = 200
		}
	}
	if c.NGramMin <= 0 {
		c.NGramMin = 1
	}
	if c.NGramMax < c.NGramMin {
		c.NGramMax = c.NGramMin
	}
	return c
}

// WordWeight is one weighted term of a topic.
type WordWeight struct {
	Word   string  `json:"word"`
	Weight float64 `json:"weight"`
}

// Topic is one discovered topic with its top terms.
type Topic struct {
	ID                     int          `json:"id"`
	Label                  string       `json:"label"`
	Words                  []WordWeight `json:"words"`
	DocumentCount          int          `json:"document_count"`
	RepresentativeComments []string     `json:"representative_comments,omitempty"`
}

// Model is the capability the modeling pipeline needs from a topic model.
// Adding an algorithm means adding a new implementation, not branching
// through the pipeline.
type Model interface {
	// Fit trains on preprocessed documents, reporting 0-100 progress.
	Fit(docs []string, onProgress func(pct int, message string)) error
	// Topics returns the discovered topics with their topN terms.
	Topics(topN int) []Topic
	// DocumentTopics returns the per-document topic distribution, one row
	// per training document, rows summing to ~1.
	DocumentTopics() [][]float64
	// RepresentativeDocuments picks the n original documents most dominated
	// by the given topic.
	RepresentativeDocuments(originalDocs []string, topicID, n int) []string
	// Diversity is the fraction of unique terms among all topics' top terms.
	Diversity() float64
	// Info reports model metadata for the result payload.
	Info() map[string]any
}

// New selects the model variant for the given algorithm name.
func New(algorithm string, cfg Config) (Model, error) {
	switch algorithm {
	case AlgorithmLDA:
		return newLDA(cfg.withDefaults(algorithm)), nil
	case AlgorithmNMF:
		return newNMF(cfg.withDefaults(algorithm)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
}

// base holds what both variants share after fitting.
type base struct {
	cfg       Config
	vocab     []string
	docTopics [][]float64     // D x K
	topicWord [][]float64     // K x V
}

func (b *base) DocumentTopics() [][]float64 {
	return b.docTopics
}

func (b *base) Topics(topN int) []Topic {
	k := b.cfg.NumTopics
	topicsList := make([]Topic, 0, k)

	counts := make([]int, k)
	for _, row := range b.docTopics {
		counts[argmax(row)]++
	}

	for t := 0; t < k; t++ {
		words := topWords(b.topicWord[t], b.vocab, topN)
		label := fmt.Sprintf("Topic %d", t)
		if len(words) > 0 {
			n := 3
			if len(words) < n {
				n = len(words)
			}
			parts := make([]string, n)
			for i := 0; i < n; i++ {
				parts[i] = words[i].Word
			}
			label = strings.Join(parts, " / ")
		}
		topicsList = append(topicsList, Topic{
			ID:            t,
			Label:         label,
			Words:         words,
			DocumentCount: counts[t],
		})
	}
	return topicsList
}

func (b *base) RepresentativeDocuments(originalDocs []string, topicID, n int) []string {
	if topicID < 0 || topicID >= b.cfg.NumTopics {
		return nil
	}
	type scored struct {
		idx    int
		weight float64
	}
	ranked := make([]scored, 0, len(b.docTopics))
	for i, row := range b.docTopics {
		ranked = append(ranked, scored{i, row[topicID]})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].weight > ranked[j].weight })

	docs := make([]string, 0, n)
	for _, r := range ranked {
		if len(docs) >= n {
			break
		}
		if r.idx >= len(originalDocs) {
			continue
		}
		doc := strings.TrimSpace(originalDocs[r.idx])
		if doc == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (b *base) Diversity() float64 {
	const topN = 10
	seen := make(map[string]struct{})
	total := 0
	for t := 0; t < b.cfg.NumTopics; t++ {
		for _, w := range topWords(b.topicWord[t], b.vocab, topN) {
			seen[w.Word] = struct{}{}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(len(seen)) / float64(total)
}

func topWords(weights []float64, vocab []string, n int) []WordWeight {
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return weights[idx[i]] > weights[idx[j]] })

	if n > len(idx) {
		n = len(idx)
	}
	words := make([]WordWeight, 0, n)
	for _, i := range idx[:n] {
		if weights[i] <= 0 {
			break
		}
		words = append(words, WordWeight{Word: vocab[i], Weight: weights[i]})
	}
	return words
}

func argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
