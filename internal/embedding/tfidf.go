package embedding

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

// DefaultMaxFeatures caps the TF-IDF vocabulary.
const DefaultMaxFeatures = 128

// ProductVectors is the output of one TF-IDF fit.
type ProductVectors struct {
	Vectors    map[int64][]float32
	Vocabulary []string
	// Skipped counts products whose text produced no vocabulary term.
	Skipped int
}

// TFIDF fits a smoothed TF-IDF model over the catalog text.
type TFIDF struct {
	dim         int
	maxFeatures int
	analyzer    *termAnalyzer
}

func NewTFIDF(dim, maxFeatures int) (*TFIDF, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension:%d", dim)
	}
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	a, err := newTermAnalyzer()
	if err != nil {
		return nil, fmt.Errorf("load stop words: %w", err)
	}
	return &TFIDF{dim: dim, maxFeatures: maxFeatures, analyzer: a}, nil
}

// Fit builds one unit vector per product. The vocabulary keeps the
// maxFeatures terms with the highest corpus frequency and is ordered
// alphabetically, so vector component i always maps to Vocabulary[i].
func (t *TFIDF) Fit(products []model.Product) *ProductVectors {
	out := &ProductVectors{Vectors: make(map[int64][]float32, len(products))}
	if len(products) == 0 {
		return out
	}
	docs := make([]map[string]int, len(products))
	corpusFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for i, p := range products {
		counts := make(map[string]int)
		for _, term := range t.analyzer.Terms(productText(p)) {
			counts[term]++
		}
		for term, c := range counts {
			corpusFreq[term] += c
			docFreq[term]++
		}
		docs[i] = counts
	}
	out.Vocabulary = selectVocabulary(corpusFreq, t.maxFeatures)
	index := make(map[string]int, len(out.Vocabulary))
	for i, term := range out.Vocabulary {
		index[term] = i
	}
	n := float64(len(products))
	idf := make([]float64, len(out.Vocabulary))
	for i, term := range out.Vocabulary {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	for i, p := range products {
		raw := make([]float64, len(out.Vocabulary))
		for term, c := range docs[i] {
			if j, ok := index[term]; ok {
				raw[j] = float64(c) * idf[j]
			}
		}
		vec, ok := Fit(raw, t.dim)
		if !ok {
			out.Skipped++
			continue
		}
		out.Vectors[p.ID] = vec
	}
	return out
}

func selectVocabulary(freq map[string]int, limit int) []string {
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	sort.Strings(terms)
	return terms
}

// productText is name, category and the markdown-flattened description.
func productText(p model.Product) string {
	return strings.Join([]string{p.Name, p.Category, PlainText(p.Description)}, " ")
}
