package plagiarism

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/RishiKendai/veritas/internal/models"
	"github.com/rs/zerolog/log"
)

// Engine runs comparisons of new documents against the corpus
type Engine struct {
	store      CorpusStore
	thresholds Thresholds
	pool       *WorkerPool
	observer   StageObserver
}

type Option func(*Engine)

// WithWorkerPool runs segment extraction for the candidates on pool
func WithWorkerPool(pool *WorkerPool) Option {
	return func(e *Engine) {
		e.pool = pool
	}
}

// WithStageObserver reports stage transitions of every check to observer
func WithStageObserver(observer StageObserver) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

func NewEngine(store CorpusStore, thresholds Thresholds, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		thresholds: thresholds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// CheckRequest is a document submitted for a plagiarism check
type CheckRequest struct {
	CheckID string
	Name    string
	Format  string
	Text    string // extracted, not yet normalized
}

// CheckOutcome is the result of a check together with the stored document
type CheckOutcome struct {
	CheckID  string
	Document *models.Document
	Result   *models.ComparisonResult
}

// RegisterRequest is a document to add to the corpus without a comparison
type RegisterRequest struct {
	Name   string
	Format string
	Text   string
}

// ContentHash returns the hex SHA-256 of normalized text
func ContentHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Register normalizes a document and stores it, rejecting duplicates
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*models.Document, error) {
	return e.register(ctx, req.Name, req.Format, Normalize(req.Text))
}

// Check stores the submitted document and compares it against every other
// document in the corpus.
func (e *Engine) Check(ctx context.Context, req CheckRequest) (outcome *CheckOutcome, err error) {
	defer func() {
		if err != nil {
			e.enter(context.WithoutCancel(ctx), req.CheckID, models.StageFailed)
		}
	}()

	e.enter(ctx, req.CheckID, models.StageNormalize)
	normalized := Normalize(req.Text)

	e.enter(ctx, req.CheckID, models.StageCheckDuplicate)
	doc, err := e.register(ctx, req.Name, req.Format, normalized)
	if err != nil {
		return nil, err
	}
	// A check that fails after the insert must not leave its document behind
	defer func() {
		if err != nil {
			e.discard(ctx, req.CheckID, doc)
		}
	}()

	corpus, err := e.store.ListOtherDocuments(ctx, doc.ID, e.thresholds.MaxCorpusDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	result, err := e.evaluate(ctx, req.CheckID, req.Text, normalized, corpus)
	if err != nil {
		return nil, err
	}

	e.enter(ctx, req.CheckID, models.StageCompleted)

	return &CheckOutcome{
		CheckID:  req.CheckID,
		Document: doc,
		Result:   result,
	}, nil
}

// Evaluate compares queryText against a corpus snapshot. It never touches
// the store.
func (e *Engine) Evaluate(ctx context.Context, queryText string, corpus []models.Document) (*models.ComparisonResult, error) {
	return e.evaluate(ctx, "", queryText, Normalize(queryText), corpus)
}

func (e *Engine) register(ctx context.Context, name, format, normalized string) (*models.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyDocumentName
	}

	hash := ContentHash(normalized)

	var (
		exists bool
		err    error
	)
	switch e.thresholds.DuplicatePolicy {
	case DuplicateByContentHash:
		exists, err = e.store.ExistsByContentHash(ctx, hash)
	default:
		exists, err = e.store.ExistsByName(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDocument, name)
	}

	now := time.Now()
	doc := &models.Document{
		Name:        name,
		Format:      format,
		Content:     normalized,
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := e.store.InsertDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = id

	return doc, nil
}

func (e *Engine) evaluate(
	ctx context.Context,
	checkID string,
	raw string,
	normalized string,
	corpus []models.Document,
) (*models.ComparisonResult, error) {
	// Edge Case: nothing to compare against
	if len(corpus) == 0 {
		log.Info().Str("checkId", checkID).Msg("Only one document available, skipping comparison")
		e.enter(ctx, checkID, models.StageAggregate)
		return &models.ComparisonResult{
			SimilarityScore:  0.0,
			Plagiarized:      false,
			MatchingSegments: []models.MatchSegment{},
			Status:           models.StatusOnlyOneDocument,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.enter(ctx, checkID, models.StageScore)
	units, err := e.queryUnits(raw, normalized)
	if err != nil {
		return nil, err
	}

	docScores := e.documentScores(corpus, units)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.enter(ctx, checkID, models.StageExtractSegments)
	candidates := e.candidates(docScores)
	segments, err := e.extractSegments(ctx, normalized, corpus, docScores, candidates)
	if err != nil {
		return nil, err
	}

	e.enter(ctx, checkID, models.StageAggregate)
	highest := 0.0
	for _, s := range docScores {
		highest = max(highest, s)
	}

	log.Debug().
		Str("checkId", checkID).
		Int("corpus", len(corpus)).
		Int("units", len(units)).
		Int("candidates", len(candidates)).
		Int("segments", len(segments)).
		Float64("score", highest).
		Msg("Comparison aggregated")

	return &models.ComparisonResult{
		SimilarityScore:  highest,
		Plagiarized:      highest > e.thresholds.PlagiarismThreshold,
		MatchingSegments: segments,
		Status:           models.StatusSuccess,
	}, nil
}

// queryUnits returns the normalized chunks of the query. The whole query is
// appended as its own unit when it spans more than one chunk.
func (e *Engine) queryUnits(raw, normalized string) ([]string, error) {
	chunks, err := Chunk(raw, e.thresholds.ChunkSentences, e.thresholds.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}

	units := make([]string, 0, len(chunks)+1)
	for _, c := range chunks {
		units = append(units, Normalize(c.Text))
	}
	if len(units) > 1 {
		units = append(units, normalized)
	}

	return units, nil
}

// documentScores returns, per corpus document, the best similarity any query unit reached
func (e *Engine) documentScores(corpus []models.Document, units []string) []float64 {
	texts := make([]string, len(corpus))
	for i, doc := range corpus {
		texts[i] = doc.Content
	}

	matrix := Score(texts, units, e.thresholds.Scorer)

	scores := make([]float64, len(corpus))
	for _, row := range matrix {
		for j, s := range row {
			scores[j] = max(scores[j], s)
		}
	}

	return scores
}

// candidates returns the indexes of documents above the relevance threshold,
// best first
func (e *Engine) candidates(docScores []float64) []int {
	idx := make([]int, 0)
	for j, s := range docScores {
		if s > e.thresholds.RelevanceThreshold {
			idx = append(idx, j)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return docScores[idx[a]] > docScores[idx[b]]
	})

	return idx
}

func (e *Engine) extractSegments(
	ctx context.Context,
	normalized string,
	corpus []models.Document,
	docScores []float64,
	candidates []int,
) ([]models.MatchSegment, error) {
	perCandidate, err := e.runMatchers(ctx, normalized, corpus, candidates)
	if err != nil {
		return nil, err
	}

	segments := make([]models.MatchSegment, 0)
	for n, j := range candidates {
		doc := corpus[j]
		for _, m := range perCandidate[n] {
			segments = append(segments, models.MatchSegment{
				Text:               m.Text,
				SourceText:         m.SourceText,
				StartIdx:           m.StartIdx,
				EndIdx:             m.EndIdx,
				SourceStartIdx:     m.SourceStart,
				SourceEndIdx:       m.SourceEnd,
				Similarity:         m.Similarity,
				DocumentSimilarity: docScores[j],
				SourceDocID:        doc.ID,
				SourceDocName:      doc.Name,
			})
		}
	}

	return segments, nil
}

// runMatchers runs the segment matcher for every candidate, on the worker
// pool when the engine has one. Results are indexed like candidates.
func (e *Engine) runMatchers(ctx context.Context, normalized string, corpus []models.Document, candidates []int) ([][]Match, error) {
	results := make([][]Match, len(candidates))
	minLength := e.thresholds.MinMatchLength

	if e.pool == nil || len(candidates) < 2 {
		for n, j := range candidates {
			matches, err := findMatchesContext(ctx, normalized, corpus[j].Content, minLength)
			if err != nil {
				return nil, err
			}
			results[n] = matches
		}
		return results, nil
	}

	resultChan := make(chan segmentResult, len(candidates))
	pending := 0
	for n, j := range candidates {
		job := &SegmentJob{
			ctx:        ctx,
			Index:      n,
			Query:      normalized,
			Source:     corpus[j].Content,
			MinLength:  minLength,
			ResultChan: resultChan,
		}
		if err := e.pool.Submit(job); err != nil {
			log.Warn().Err(err).Msg("Worker pool unavailable, matching inline")
			matches, err := findMatchesContext(ctx, normalized, corpus[j].Content, minLength)
			if err != nil {
				return nil, err
			}
			results[n] = matches
			continue
		}
		pending++
	}

	for pending > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.pool.Done():
			return nil, fmt.Errorf("worker pool closed with %d matching jobs pending", pending)
		case r := <-resultChan:
			if r.err != nil {
				return nil, r.err
			}
			results[r.index] = r.matches
			pending--
		}
	}

	return results, nil
}

// discard removes a document inserted by a failed check. It runs detached
// from ctx, which is usually the reason the check failed.
func (e *Engine) discard(ctx context.Context, checkID string, doc *models.Document) {
	if err := e.store.DeleteDocument(context.WithoutCancel(ctx), doc.ID); err != nil {
		log.Error().Err(err).Str("checkId", checkID).Str("documentId", doc.ID).Msg("Failed to remove document of failed check")
		return
	}
	log.Debug().Str("checkId", checkID).Str("documentId", doc.ID).Msg("Removed document of failed check")
}

func (e *Engine) enter(ctx context.Context, checkID string, stage models.Stage) {
	if e.observer == nil || checkID == "" {
		return
	}
	if err := e.observer.UpdateStage(ctx, checkID, stage); err != nil {
		log.Warn().Err(err).Str("checkId", checkID).Str("stage", string(stage)).Msg("Failed to update check stage")
	}
}
