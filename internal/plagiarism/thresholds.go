package plagiarism

import "fmt"

// DuplicatePolicy selects how an incoming document is recognised as already ingested
type DuplicatePolicy string

const (
	DuplicateByName        DuplicatePolicy = "name"
	DuplicateByContentHash DuplicatePolicy = "content_hash"
)

const (
	DefaultRelevanceThreshold  = 0.3
	DefaultPlagiarismThreshold = 0.5
	DefaultMaxChunks           = 500
	DefaultMaxCorpusDocuments  = 5000
)

// Thresholds holds the tunable parameters of a comparison
type Thresholds struct {
	// RelevanceThreshold is the document score a candidate must exceed
	// before segments are extracted from it
	RelevanceThreshold float64
	// PlagiarismThreshold is the overall score that must be exceeded for a
	// positive verdict
	PlagiarismThreshold float64
	MinMatchLength      int
	ChunkSentences      int
	MaxChunks           int
	MaxCorpusDocuments  int
	DuplicatePolicy     DuplicatePolicy
	Scorer              ScorerOptions
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		RelevanceThreshold:  DefaultRelevanceThreshold,
		PlagiarismThreshold: DefaultPlagiarismThreshold,
		MinMatchLength:      DefaultMinMatchLength,
		ChunkSentences:      DefaultChunkSentences,
		MaxChunks:           DefaultMaxChunks,
		MaxCorpusDocuments:  DefaultMaxCorpusDocuments,
		DuplicatePolicy:     DuplicateByName,
	}
}

func (t Thresholds) Validate() error {
	if t.RelevanceThreshold < 0 || t.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance threshold must be within [0, 1], got %v", t.RelevanceThreshold)
	}
	if t.PlagiarismThreshold < 0 || t.PlagiarismThreshold > 1 {
		return fmt.Errorf("plagiarism threshold must be within [0, 1], got %v", t.PlagiarismThreshold)
	}
	if t.MinMatchLength <= 0 {
		return fmt.Errorf("min match length must be greater than 0")
	}
	if t.ChunkSentences <= 0 {
		return fmt.Errorf("chunk sentences must be greater than 0")
	}
	if t.MaxChunks < 0 || t.MaxCorpusDocuments < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	switch t.DuplicatePolicy {
	case DuplicateByName, DuplicateByContentHash:
	default:
		return fmt.Errorf("unknown duplicate policy: %q", t.DuplicatePolicy)
	}
	return nil
}
