package plagiarism

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_EmptyInputs(t *testing.T) {
	assert.Empty(t, Score(nil, []string{"some text"}, ScorerOptions{}))
	assert.Empty(t, Score([]string{"some text"}, nil, ScorerOptions{}))
}

func TestScore_Identical(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	m := Score([]string{text}, []string{text}, ScorerOptions{})
	require.Len(t, m, 1)
	require.Len(t, m[0], 1)
	assert.InDelta(t, 1.0, m[0][0], 1e-9)
}

func TestScore_Disjoint(t *testing.T) {
	m := Score([]string{"apples oranges grow"}, []string{"quantum mechanics describes"}, ScorerOptions{})
	assert.Equal(t, 0.0, m[0][0])
}

func TestScore_Shape(t *testing.T) {
	corpus := []string{"alpha beta gamma", "beta gamma delta", "epsilon zeta"}
	queries := []string{"alpha beta", "zeta eta"}

	m := Score(corpus, queries, ScorerOptions{})
	require.Len(t, m, 2)
	for _, row := range m {
		require.Len(t, row, 3)
		for _, s := range row {
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}

	// alpha is rarer than beta, so the first document wins for the first query
	assert.Greater(t, m[0][0], m[0][1])
	assert.Equal(t, 0.0, m[0][2])
	assert.Greater(t, m[1][2], 0.0)
}

func TestScore_SingleRuneTokensIgnored(t *testing.T) {
	m := Score([]string{"a b c"}, []string{"a b c"}, ScorerOptions{})
	assert.Equal(t, 0.0, m[0][0])
}

func TestScore_MaxDocumentFrequency(t *testing.T) {
	corpus := []string{"shared alpha", "shared beta"}
	query := []string{"shared"}

	m := Score(corpus, query, ScorerOptions{})
	assert.Greater(t, m[0][0], 0.0)

	m = Score(corpus, query, ScorerOptions{MaxDocumentFrequency: 0.5})
	assert.Equal(t, 0.0, m[0][0])
	assert.Equal(t, 0.0, m[0][1])
}

func TestScore_MaxFeatures(t *testing.T) {
	corpus := []string{"common common common rare"}
	query := []string{"rare"}

	m := Score(corpus, query, ScorerOptions{MaxFeatures: 1})
	assert.Equal(t, 0.0, m[0][0])

	m = Score(corpus, query, ScorerOptions{MaxFeatures: 2})
	assert.Greater(t, m[0][0], 0.0)
}

func TestCosine_Clamped(t *testing.T) {
	a := sparseVector{{idx: 0, w: 1.0000001}}
	assert.Equal(t, 1.0, cosine(a, a))
	assert.Equal(t, 0.0, cosine(a, sparseVector{}))
}

func TestScore_TermsSharedByEveryTextKeepWeight(t *testing.T) {
	// One corpus text and one query unit: every term appears in both texts
	text := "students submitted the essay before the deadline"
	m := Score([]string{text}, []string{text}, ScorerOptions{})
	assert.InDelta(t, 1.0, m[0][0], 1e-9)

	vecs := vectorize([]string{text, text}, ScorerOptions{})
	for _, vec := range vecs {
		require.NotEmpty(t, vec)
		for _, e := range vec {
			assert.Greater(t, e.w, 0.0)
		}
	}

	partial := Score([]string{"students submitted the essay"}, []string{"students submitted late"}, ScorerOptions{})
	assert.Greater(t, partial[0][0], 0.0)
	assert.Less(t, partial[0][0], 1.0)
}
