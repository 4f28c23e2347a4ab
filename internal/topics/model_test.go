package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoClusterCorpus has two clearly separated vocabularies so both algorithms
// can split it.
func twoClusterCorpus() []string {
	var docs []string
	for i := 0; i < 15; i++ {
		docs = append(docs, "guitar chords music song melody guitar strings")
		docs = append(docs, "recipe cooking pasta sauce kitchen recipe dinner")
	}
	return docs
}

func TestNewSelectsAlgorithm(t *testing.T) {
	for _, algorithm := range []string{AlgorithmLDA, AlgorithmNMF} {
		model, err := New(algorithm, Config{NumTopics: 2})
		require.NoError(t, err, algorithm)
		require.NotNil(t, model)
	}

	_, err := New("bogus", Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	assert.Contains(t, err.Error(), "bogus")
}

func TestFitProperties(t *testing.T) {
	docs := twoClusterCorpus()
	for _, algorithm := range []string{AlgorithmLDA, AlgorithmNMF} {
		t.Run(algorithm, func(t *testing.T) {
			model, err := New(algorithm, Config{NumTopics: 2, MaxIter: 30, Seed: 42})
			require.NoError(t, err)

			var lastPct int
			require.NoError(t, model.Fit(docs, func(pct int, message string) {
				assert.GreaterOrEqual(t, pct, lastPct, "training progress must not regress")
				lastPct = pct
			}))

			topicList := model.Topics(10)
			require.Len(t, topicList, 2)
			for _, topic := range topicList {
				assert.NotEmpty(t, topic.Words)
				assert.NotEmpty(t, topic.Label)
			}

			// One row per document, each a distribution.
			dist := model.DocumentTopics()
			require.Len(t, dist, len(docs))
			for _, row := range dist {
				require.Len(t, row, 2)
				sum := 0.0
				for _, v := range row {
					assert.GreaterOrEqual(t, v, 0.0)
					sum += v
				}
				assert.InDelta(t, 1.0, sum, 0.01)
			}

			d := model.Diversity()
			assert.Greater(t, d, 0.0)
			assert.LessOrEqual(t, d, 1.0)

			info := model.Info()
			assert.Equal(t, algorithm, info["algorithm"])
		})
	}
}

func TestRepresentativeDocuments(t *testing.T) {
	docs := twoClusterCorpus()
	model, err := New(AlgorithmNMF, Config{NumTopics: 2, MaxIter: 50, Seed: 7})
	require.NoError(t, err)
	require.NoError(t, model.Fit(docs, nil))

	for topicID := 0; topicID < 2; topicID++ {
		reps := model.RepresentativeDocuments(docs, topicID, 3)
		assert.Len(t, reps, 3)
		for _, r := range reps {
			assert.Contains(t, docs, r)
		}
	}

	assert.Nil(t, model.RepresentativeDocuments(docs, 99, 3))
	assert.Nil(t, model.RepresentativeDocuments(docs, -1, 3))
}

func TestBuildMatrix(t *testing.T) {
	docs := []string{"red fish blue fish", "blue sky"}
	matrix, vocab := buildMatrix(docs, 1, 1)

	require.Len(t, matrix, 2)
	index := make(map[string]int, len(vocab))
	for i, term := range vocab {
		index[term] = i
	}
	require.Contains(t, index, "fish")
	assert.Equal(t, 2.0, matrix[0][index["fish"]])
	assert.Equal(t, 1.0, matrix[0][index["blue"]])
	assert.Equal(t, 0.0, matrix[1][index["fish"]])
	assert.Equal(t, 1.0, matrix[1][index["sky"]])

	// Most frequent terms sort first.
	assert.Equal(t, "blue", vocab[0])
	assert.Equal(t, "fish", vocab[1])
}

func TestBuildMatrixBigrams(t *testing.T) {
	_, vocab := buildMatrix([]string{"new york city"}, 1, 2)
	assert.Contains(t, vocab, "new york")
	assert.Contains(t, vocab, "york city")
	assert.Contains(t, vocab, "city")
}

func TestNgrams(t *testing.T) {
	tokens := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b", "c"}, ngrams(tokens, 1, 1))
	assert.Equal(t, []string{"a", "b", "c", "a b", "b c"}, ngrams(tokens, 1, 2))
	assert.Nil(t, ngrams(tokens, 4, 5))
}
