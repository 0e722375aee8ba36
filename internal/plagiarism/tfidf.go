package plagiarism

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// ScorerOptions tunes the TF-IDF vector space
type ScorerOptions struct {
	// MaxFeatures keeps only the most frequent terms; 0 keeps all of them
	MaxFeatures int
	// MaxDocumentFrequency drops terms present in a larger share of the
	// texts; values outside (0, 1) disable the filter
	MaxDocumentFrequency float64
}

type weight struct {
	idx int
	w   float64
}

// sparseVector holds L2-normalized weights in ascending vocabulary order, so
// sums run in a fixed order and scores are reproducible
type sparseVector []weight

// Score builds one TF-IDF space over corpusTexts and queryUnits together and
// returns the cosine similarity of every query unit against every corpus
// text, indexed [query][corpus]. An empty corpus yields an empty matrix.
func Score(corpusTexts, queryUnits []string, opts ScorerOptions) [][]float64 {
	if len(corpusTexts) == 0 || len(queryUnits) == 0 {
		return [][]float64{}
	}

	all := make([]string, 0, len(corpusTexts)+len(queryUnits))
	all = append(all, corpusTexts...)
	all = append(all, queryUnits...)

	vectors := vectorize(all, opts)
	corpusVecs := vectors[:len(corpusTexts)]
	queryVecs := vectors[len(corpusTexts):]

	matrix := make([][]float64, len(queryVecs))
	for i, q := range queryVecs {
		row := make([]float64, len(corpusVecs))
		for j, c := range corpusVecs {
			row[j] = cosine(q, c)
		}
		matrix[i] = row
	}

	return matrix
}

// tokenize splits normalized text into terms of at least two runes
func tokenize(text string) []string {
	fields := strings.Fields(text)
	terms := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// vectorize computes smoothed TF-IDF weights, idf = ln((1+n)/(1+df)) + 1,
// and returns one L2-normalized vector per text
func vectorize(texts []string, opts ScorerOptions) []sparseVector {
	n := len(texts)
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	total := make(map[string]int)

	for i, text := range texts {
		tf := make(map[string]int)
		for _, term := range tokenize(text) {
			tf[term]++
			total[term]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}

	vocab := buildVocabulary(df, total, n, opts)

	idf := make([]float64, len(vocab))
	for term, idx := range vocab {
		idf[idx] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	vectors := make([]sparseVector, n)
	for i, tf := range counts {
		vec := make(sparseVector, 0, len(tf))
		for term, c := range tf {
			if idx, ok := vocab[term]; ok {
				vec = append(vec, weight{idx: idx, w: float64(c) * idf[idx]})
			}
		}
		sort.Slice(vec, func(a, b int) bool { return vec[a].idx < vec[b].idx })

		norm := 0.0
		for _, e := range vec {
			norm += e.w * e.w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range vec {
				vec[k].w /= norm
			}
		}
		vectors[i] = vec
	}

	return vectors
}

// buildVocabulary assigns indexes to the retained terms
func buildVocabulary(df, total map[string]int, n int, opts ScorerOptions) map[string]int {
	terms := make([]string, 0, len(df))
	for term, d := range df {
		if opts.MaxDocumentFrequency > 0 && opts.MaxDocumentFrequency < 1 &&
			float64(d) > opts.MaxDocumentFrequency*float64(n) {
			continue
		}
		terms = append(terms, term)
	}

	if opts.MaxFeatures > 0 && len(terms) > opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if total[terms[i]] != total[terms[j]] {
				return total[terms[i]] > total[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:opts.MaxFeatures]
	}

	sort.Strings(terms)
	vocab := make(map[string]int, len(terms))
	for i, term := range terms {
		vocab[term] = i
	}

	return vocab
}

// cosine of two L2-normalized vectors, clamped to [0, 1].
// A zero vector has similarity 0 with everything.
func cosine(a, b sparseVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	dot := 0.0
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i].idx == b[j].idx:
			dot += a[i].w * b[j].w
			i++
			j++
		case a[i].idx < b[j].idx:
			i++
		default:
			j++
		}
	}

	return math.Max(0.0, math.Min(1.0, dot))
}
