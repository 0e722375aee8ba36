package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/metrics"
	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/rs/zerolog/log"
)

const (
	SourceHTTP    = "http"
	SourceStream  = "stream"
	SourceWatcher = "watcher"
	SourceCLI     = "cli"
)

// ReportStore persists the outcome of checks
type ReportStore interface {
	InsertReport(ctx context.Context, report *models.ComparisonReport) error
}

type Service struct {
	engine  *plagiarism.Engine
	reports ReportStore
}

// NewService builds the ingestion service. reports may be nil when checks
// are not persisted.
func NewService(engine *plagiarism.Engine, reports ReportStore) *Service {
	return &Service{
		engine:  engine,
		reports: reports,
	}
}

// extracts the request's text, resolving the format from the name when unset
func extractRequest(req *models.IngestRequest) (string, string, error) {
	format := extract.NormalizeFormat(req.Format)
	if format == "" {
		format = extract.FormatFromFilename(req.Name)
	}

	text, err := extract.Extract(req.Content, format)
	if err != nil {
		return "", format, err
	}

	return text, format, nil
}

// Ingest extracts a file and adds it to the corpus without a comparison
func (s *Service) Ingest(ctx context.Context, req *models.IngestRequest) (*models.Document, error) {
	text, format, err := extractRequest(req)
	if err != nil {
		metrics.IngestFailures.WithLabelValues(req.Source, failureReason(err)).Inc()
		return nil, err
	}

	doc, err := s.engine.Register(ctx, plagiarism.RegisterRequest{
		Name:   req.Name,
		Format: format,
		Text:   text,
	})
	if err != nil {
		metrics.IngestFailures.WithLabelValues(req.Source, failureReason(err)).Inc()
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	metrics.DocumentsIngested.WithLabelValues(req.Source).Inc()
	log.Info().
		Str("documentId", doc.ID).
		Str("name", doc.Name).
		Str("format", format).
		Str("source", req.Source).
		Msg("Document ingested")

	return doc, nil
}

// Check extracts a submitted file, stores it and compares it against the
// rest of the corpus. The outcome is persisted when a report store is set.
func (s *Service) Check(ctx context.Context, checkID string, req *models.IngestRequest) (*plagiarism.CheckOutcome, error) {
	start := time.Now()
	defer func() {
		metrics.CheckDuration.Observe(time.Since(start).Seconds())
	}()

	text, format, err := extractRequest(req)
	if err != nil {
		metrics.CheckCount.WithLabelValues("failed").Inc()
		return nil, err
	}

	outcome, err := s.engine.Check(ctx, plagiarism.CheckRequest{
		CheckID: checkID,
		Name:    req.Name,
		Format:  format,
		Text:    text,
	})
	if err != nil {
		if errors.Is(err, plagiarism.ErrDuplicateDocument) {
			metrics.CheckCount.WithLabelValues("duplicate").Inc()
		} else {
			metrics.CheckCount.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	metrics.CheckCount.WithLabelValues(checkOutcomeLabel(outcome.Result)).Inc()
	metrics.SimilarityScore.Observe(outcome.Result.SimilarityScore)
	metrics.SegmentCount.Add(float64(len(outcome.Result.MatchingSegments)))
	metrics.DocumentsIngested.WithLabelValues(req.Source).Inc()

	if s.reports != nil {
		report := &models.ComparisonReport{
			CheckID:      checkID,
			DocumentID:   outcome.Document.ID,
			DocumentName: outcome.Document.Name,
			Format:       outcome.Document.Format,
			Result:       *outcome.Result,
		}
		// A lost report does not fail the check
		if err := s.reports.InsertReport(ctx, report); err != nil {
			log.Error().Err(err).Str("checkId", checkID).Msg("Failed to persist comparison report")
		}
	}

	log.Info().
		Str("checkId", checkID).
		Str("documentId", outcome.Document.ID).
		Float64("similarity", outcome.Result.SimilarityScore).
		Bool("plagiarized", outcome.Result.Plagiarized).
		Int("segments", len(outcome.Result.MatchingSegments)).
		Str("status", outcome.Result.Status).
		Msg("Check completed")

	return outcome, nil
}

func checkOutcomeLabel(result *models.ComparisonResult) string {
	switch {
	case result.Status == models.StatusOnlyOneDocument:
		return "only_one_document"
	case result.Plagiarized:
		return "plagiarized"
	default:
		return "clean"
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, plagiarism.ErrDuplicateDocument):
		return "duplicate"
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, extract.ErrExtractionFailed):
		return "extraction_failed"
	default:
		return "error"
	}
}
