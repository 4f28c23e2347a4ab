package topics

import (
	"fmt"
	"math"
	"math/rand"
)

// nmfModel factorizes the term-frequency matrix V (docs x terms) into
// W (docs x topics) and H (topics x terms) with multiplicative updates.
type nmfModel struct {
	base
	reconstructionError float64
}

func newNMF(cfg Config) *nmfModel {
	return &nmfModel{base: base{cfg: cfg}}
}

const nmfEps = 1e-10

func (m *nmfModel) Fit(docs []string, onProgress func(pct int, message string)) error {
	v, vocab := buildMatrix(docs, m.cfg.NGramMin, m.cfg.NGramMax)
	if len(vocab) == 0 {
		return fmt.Errorf("empty vocabulary after vectorization")
	}
	m.vocab = vocab

	d := len(v)
	f := len(vocab)
	k := m.cfg.NumTopics

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	w := randomMatrix(rng, d, k)
	h := randomMatrix(rng, k, f)

	for iter := 0; iter < m.cfg.MaxIter; iter++ {
		// H <- H * (W^T V) / (W^T W H)
		wtv := matMulT(w, v)           // k x f
		wtwh := matMul(matMulTT(w), h) // k x f
		for i := 0; i < k; i++ {
			for j := 0; j < f; j++ {
				h[i][j] *= wtv[i][j] / (wtwh[i][j] + nmfEps)
			}
		}
		// W <- W * (V H^T) / (W H H^T)
		vht := matMulBT(v, h)              // d x k
		whht := matMul(w, matMulBTSelf(h)) // d x k
		for i := 0; i < d; i++ {
			for j := 0; j < k; j++ {
				w[i][j] *= vht[i][j] / (whht[i][j] + nmfEps)
			}
		}
		if onProgress != nil && (iter+1)%10 == 0 {
			onProgress((iter+1)*100/m.cfg.MaxIter, fmt.Sprintf("NMF iteration %d/%d", iter+1, m.cfg.MaxIter))
		}
	}
	if onProgress != nil {
		onProgress(100, "NMF training done")
	}

	// Frobenius reconstruction error.
	var errSum float64
	for i := 0; i < d; i++ {
		for j := 0; j < f; j++ {
			var approx float64
			for t := 0; t < k; t++ {
				approx += w[i][t] * h[t][j]
			}
			diff := v[i][j] - approx
			errSum += diff * diff
		}
	}
	m.reconstructionError = math.Sqrt(errSum)

	// Normalize W rows into per-document topic distributions.
	m.docTopics = make([][]float64, d)
	for i := 0; i < d; i++ {
		row := make([]float64, k)
		var sum float64
		for t := 0; t < k; t++ {
			sum += w[i][t]
		}
		if sum <= 0 {
			for t := 0; t < k; t++ {
				row[t] = 1 / float64(k)
			}
		} else {
			for t := 0; t < k; t++ {
				row[t] = w[i][t] / sum
			}
		}
		m.docTopics[i] = row
	}
	m.topicWord = h
	return nil
}

func (m *nmfModel) Info() map[string]any {
	return map[string]any{
		"algorithm":            AlgorithmNMF,
		"num_topics":           m.cfg.NumTopics,
		"num_features":         len(m.vocab),
		"max_iter":             m.cfg.MaxIter,
		"reconstruction_error": m.reconstructionError,
	}
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rng.Float64() + nmfEps
		}
	}
	return m
}

// matMul computes A (r x n) * B (n x c).
func matMul(a, b [][]float64) [][]float64 {
	rows := len(a)
	inner := len(b)
	cols := len(b[0])
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for t := 0; t < inner; t++ {
			av := a[i][t]
			if av == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				out[i][j] += av * b[t][j]
			}
		}
	}
	return out
}

// matMulT computes A^T (k x d) * B (d x f) where A is d x k.
func matMulT(a, b [][]float64) [][]float64 {
	d := len(a)
	k := len(a[0])
	f := len(b[0])
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, f)
	}
	for di := 0; di < d; di++ {
		for ki := 0; ki < k; ki++ {
			av := a[di][ki]
			if av == 0 {
				continue
			}
			for j := 0; j < f; j++ {
				out[ki][j] += av * b[di][j]
			}
		}
	}
	return out
}

// matMulTT computes A^T * A for A (d x k), giving k x k.
func matMulTT(a [][]float64) [][]float64 {
	d := len(a)
	k := len(a[0])
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
	}
	for di := 0; di < d; di++ {
		for i := 0; i < k; i++ {
			av := a[di][i]
			if av == 0 {
				continue
			}
			for j := 0; j < k; j++ {
				out[i][j] += av * a[di][j]
			}
		}
	}
	return out
}

// matMulBT computes A (d x f) * B^T for B (k x f), giving d x k.
func matMulBT(a, b [][]float64) [][]float64 {
	d := len(a)
	f := len(a[0])
	k := len(b)
	out := make([][]float64, d)
	for i := 0; i < d; i++ {
		out[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			var sum float64
			for t := 0; t < f; t++ {
				sum += a[i][t] * b[j][t]
			}
			out[i][j] = sum
		}
	}
	return out
}

// matMulBTSelf computes H * H^T for H (k x f), giving k x k.
func matMulBTSelf(h [][]float64) [][]float64 {
	return matMulBT(h, h)
}
