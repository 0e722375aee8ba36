package plagiarism

import (
	"context"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultMinMatchLength is the shortest span, in runes, reported as a match
const DefaultMinMatchLength = 20

// Match is a literal block shared by a query and a source text.
// Offsets are rune offsets, end exclusive.
type Match struct {
	Text        string
	SourceText  string
	StartIdx    int
	EndIdx      int
	SourceStart int
	SourceEnd   int
	Similarity  float64 // size / len(query)
}

// FindMatches returns every maximal block of at least minLength runes shared
// by query and source, ordered by position in query. Blocks come from a
// SequenceMatcher over the runes of both texts with the junk heuristic off,
// so frequent characters in long sources are still matched.
func FindMatches(query, source string, minLength int) []Match {
	a := []rune(query)
	b := []rune(source)

	matches := make([]Match, 0)
	if len(a) == 0 || len(b) == 0 {
		return matches
	}
	if minLength < 1 {
		minLength = 1
	}

	sm := difflib.NewMatcherWithJunk(runeElements(a), runeElements(b), false, nil)
	for _, blk := range sm.GetMatchingBlocks() {
		// the closing block is a zero-size sentinel
		if blk.Size < minLength {
			continue
		}
		matches = append(matches, Match{
			Text:        string(a[blk.A : blk.A+blk.Size]),
			SourceText:  string(b[blk.B : blk.B+blk.Size]),
			StartIdx:    blk.A,
			EndIdx:      blk.A + blk.Size,
			SourceStart: blk.B,
			SourceEnd:   blk.B + blk.Size,
			Similarity:  float64(blk.Size) / float64(len(a)),
		})
	}

	return matches
}

// findMatchesContext is FindMatches that returns as soon as ctx is done. An
// abandoned comparison runs to completion in the background and its result
// is dropped.
func findMatchesContext(ctx context.Context, query, source string, minLength int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan []Match, 1)
	go func() {
		done <- FindMatches(query, source, minLength)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case matches := <-done:
		return matches, nil
	}
}

// runeElements turns runes into the string elements difflib compares.
// Matcher indexes are then rune offsets.
func runeElements(runes []rune) []string {
	elems := make([]string, len(runes))
	for i, r := range runes {
		elems[i] = string(r)
	}
	return elems
}
