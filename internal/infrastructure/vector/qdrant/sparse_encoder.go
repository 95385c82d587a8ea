package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// sparseVector is the lexical half of a hybrid point: hashed term ids with saturated tf weights.
type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

func (v sparseVector) empty() bool {
	return len(v.Indices) == 0
}

const (
	docBM25K       = 1.2
	queryBM25K     = 1.2
	maxSparseTerms = 256
)

func encodeSparseDocument(text string) sparseVector {
	return termFreqToSparse(termFrequencies(tokenize(text)), docBM25K)
}

func encodeSparseQuery(query string) sparseVector {
	return termFreqToSparse(termFrequencies(tokenize(query)), queryBM25K)
}

func termFrequencies(tokens []string) map[uint32]float64 {
	tf := make(map[uint32]float64, len(tokens))
	for _, token := range tokens {
		tf[hashToken(token)]++
	}
	return tf
}

func termFreqToSparse(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		freq := tf[idx]
		weight := (freq * (k + 1.0)) / (freq + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

// tokenize lower-cases and splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
