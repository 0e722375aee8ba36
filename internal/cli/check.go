package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/ingest"
	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/RishiKendai/veritas/internal/repository"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	corpusDir   string
	jsonOutput  bool
	thresholds  plagiarism.Thresholds
	maxSegments int
}

func newCheckCmd() *cobra.Command {
	opts := checkOptions{thresholds: plagiarism.DefaultThresholds()}

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Check a file against a directory of documents",
		Long: `Check loads every supported file in the corpus directory into an in-memory
corpus and compares FILE against it. Nothing is persisted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.corpusDir, "corpus", "", "directory holding the reference documents")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the result as JSON")
	flags.Float64Var(&opts.thresholds.RelevanceThreshold, "relevance", plagiarism.DefaultRelevanceThreshold, "document score needed before segments are extracted")
	flags.Float64Var(&opts.thresholds.PlagiarismThreshold, "threshold", plagiarism.DefaultPlagiarismThreshold, "score above which the file is reported as plagiarized")
	flags.IntVar(&opts.thresholds.MinMatchLength, "min-match", plagiarism.DefaultMinMatchLength, "minimum length of a reported segment")
	flags.IntVar(&opts.maxSegments, "max-segments", 10, "segments to print in text mode, 0 for all")
	_ = cmd.MarkFlagRequired("corpus")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, path string, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := opts.thresholds.Validate(); err != nil {
		return err
	}

	store := repository.NewMemoryDocumentStore(opts.thresholds.DuplicatePolicy)
	engine := plagiarism.NewEngine(store, opts.thresholds)
	svc := ingest.NewService(engine, nil)

	loaded, err := loadCorpus(ctx, svc, opts.corpusDir, path)
	if err != nil {
		return err
	}
	log.Info().Int("documents", loaded).Str("dir", opts.corpusDir).Msg("Corpus loaded")

	req, err := readRequest(path)
	if err != nil {
		return err
	}

	outcome, err := svc.Check(ctx, uuid.New().String(), req)
	if errors.Is(err, plagiarism.ErrDuplicateDocument) {
		return fmt.Errorf("%s is already part of the corpus", req.Name)
	}
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(models.CheckResponse{
			CheckID:          outcome.CheckID,
			DocumentID:       outcome.Document.ID,
			ComparisonResult: *outcome.Result,
		})
	}

	printResult(out, req.Name, loaded, outcome.Result, opts.maxSegments)
	return nil
}

// loadCorpus ingests the supported files of dir, skipping the checked file
func loadCorpus(ctx context.Context, svc *ingest.Service, dir, checked string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	checkedAbs, _ := filepath.Abs(checked)
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !extract.IsSupported(extract.FormatFromFilename(entry.Name())) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if abs, _ := filepath.Abs(path); abs == checkedAbs {
			continue
		}

		req, err := readRequest(path)
		if err != nil {
			return count, err
		}
		if _, err := svc.Ingest(ctx, req); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping corpus file")
			continue
		}
		count++
	}

	return count, nil
}

func readRequest(path string) (*models.IngestRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := filepath.Base(path)
	return &models.IngestRequest{
		Name:    name,
		Format:  extract.FormatFromFilename(name),
		Content: data,
		Source:  ingest.SourceCLI,
	}, nil
}

func printResult(out io.Writer, name string, corpusSize int, result *models.ComparisonResult, maxSegments int) {
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(out, "%s %s (corpus: %d documents)\n", bold("File:"), name, corpusSize)

	if result.Status == models.StatusOnlyOneDocument {
		fmt.Fprintln(out, faint("Nothing to compare against."))
		return
	}

	verdict := green("ORIGINAL")
	if result.Plagiarized {
		verdict = red("PLAGIARIZED")
	}
	fmt.Fprintf(out, "%s %s  %s %.1f%%\n", bold("Verdict:"), verdict, bold("Similarity:"), result.SimilarityScore*100)

	segments := result.MatchingSegments
	if len(segments) == 0 {
		return
	}
	fmt.Fprintf(out, "%s %d\n", bold("Matching segments:"), len(segments))
	if maxSegments > 0 && len(segments) > maxSegments {
		segments = segments[:maxSegments]
	}
	for i, seg := range segments {
		fmt.Fprintf(out, "%3d. %s [%d:%d] %s\n", i+1,
			color.CyanString(seg.SourceDocName),
			seg.StartIdx, seg.EndIdx,
			faint(fmt.Sprintf("doc %.0f%%", seg.DocumentSimilarity*100)))
		fmt.Fprintf(out, "     %q\n", seg.Text)
	}
}
