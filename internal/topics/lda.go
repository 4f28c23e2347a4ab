package topics

import (
	"fmt"
	"math/rand"
)

// ldaModel is latent Dirichlet allocation trained by collapsed Gibbs
// sampling over the term-frequency matrix.
type ldaModel struct {
	base
	alpha float64
	beta  float64
	iters int
}

func newLDA(cfg Config) *ldaModel {
	return &ldaModel{
		base:  base{cfg: cfg},
		alpha: 0.1,
		beta:  0.01,
	}
}

func (m *ldaModel) Fit(docs []string, onProgress func(pct int, message string)) error {
	matrix, vocab := buildMatrix(docs, m.cfg.NGramMin, m.cfg.NGramMax)
	if len(vocab) == 0 {
		return fmt.Errorf("empty vocabulary after vectorization")
	}
	m.vocab = vocab

	k := m.cfg.NumTopics
	v := len(vocab)
	d := len(matrix)

	// Expand counts into token occurrences with a topic assignment each.
	type token struct {
		doc, word, topic int
	}
	var tokens []token
	for di, row := range matrix {
		for wi, count := range row {
			for c := 0; c < int(count); c++ {
				tokens = append(tokens, token{doc: di, word: wi})
			}
		}
	}

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	docTopic := make([][]float64, d)
	for i := range docTopic {
		docTopic[i] = make([]float64, k)
	}
	topicWord := make([][]float64, k)
	for i := range topicWord {
		topicWord[i] = make([]float64, v)
	}
	topicTotal := make([]float64, k)
	docTotal := make([]float64, d)

	for i := range tokens {
		t := rng.Intn(k)
		tokens[i].topic = t
		docTopic[tokens[i].doc][t]++
		topicWord[t][tokens[i].word]++
		topicTotal[t]++
		docTotal[tokens[i].doc]++
	}

	probs := make([]float64, k)
	for iter := 0; iter < m.cfg.MaxIter; iter++ {
		for i := range tokens {
			tok := &tokens[i]
			docTopic[tok.doc][tok.topic]--
			topicWord[tok.topic][tok.word]--
			topicTotal[tok.topic]--

			var sum float64
			for t := 0; t < k; t++ {
				p := (docTopic[tok.doc][t] + m.alpha) *
					(topicWord[t][tok.word] + m.beta) /
					(topicTotal[t] + m.beta*float64(v))
				probs[t] = p
				sum += p
			}
			r := rng.Float64() * sum
			next := k - 1
			for t := 0; t < k; t++ {
				r -= probs[t]
				if r <= 0 {
					next = t
					break
				}
			}

			tok.topic = next
			docTopic[tok.doc][next]++
			topicWord[next][tok.word]++
			topicTotal[next]++
		}
		if onProgress != nil {
			onProgress((iter+1)*100/m.cfg.MaxIter, fmt.Sprintf("LDA iteration %d/%d", iter+1, m.cfg.MaxIter))
		}
	}
	m.iters = m.cfg.MaxIter

	// Posterior means.
	m.docTopics = make([][]float64, d)
	for di := 0; di < d; di++ {
		row := make([]float64, k)
		denom := docTotal[di] + m.alpha*float64(k)
		for t := 0; t < k; t++ {
			row[t] = (docTopic[di][t] + m.alpha) / denom
		}
		m.docTopics[di] = row
	}
	m.topicWord = make([][]float64, k)
	for t := 0; t < k; t++ {
		row := make([]float64, v)
		denom := topicTotal[t] + m.beta*float64(v)
		for wi := 0; wi < v; wi++ {
			row[wi] = (topicWord[t][wi] + m.beta) / denom
		}
		m.topicWord[t] = row
	}
	return nil
}

func (m *ldaModel) Info() map[string]any {
	return map[string]any{
		"algorithm":    AlgorithmLDA,
		"num_topics":   m.cfg.NumTopics,
		"num_features": len(m.vocab),
		"max_iter":     m.cfg.MaxIter,
		"iterations":   m.iters,
		"alpha":        m.alpha,
		"beta":         m.beta,
	}
}
