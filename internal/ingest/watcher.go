package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultSettleDelay = 500 * time.Millisecond

// Ingester adds one file to the corpus
type Ingester interface {
	Ingest(ctx context.Context, req *models.IngestRequest) (*models.Document, error)
}

// Watcher ingests files dropped into a directory. A file is read once no
// event has been seen for it during the settle delay, so partially written
// files are not stored.
type Watcher struct {
	dir         string
	ingester    Ingester
	settleDelay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

func NewWatcher(dir string, ingester Ingester) *Watcher {
	return &Watcher{
		dir:         dir,
		ingester:    ingester,
		settleDelay: defaultSettleDelay,
		pending:     make(map[string]*time.Timer),
		ready:       make(chan string, 64),
		done:        make(chan struct{}),
	}
}

// IngestExisting ingests the supported files already present in the directory
func (w *Watcher) IngestExisting(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read watch directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !extract.IsSupported(extract.FormatFromFilename(entry.Name())) {
			continue
		}
		if w.ingestFile(ctx, filepath.Join(w.dir, entry.Name())) {
			count++
		}
	}

	return count, nil
}

// Run watches the directory until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	defer close(w.done)

	log.Info().Str("dir", w.dir).Msg("Watching directory for new documents")

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !extract.IsSupported(extract.FormatFromFilename(event.Name)) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("dir", w.dir).Msg("Watcher error")
		case path := <-w.ready:
			w.ingestFile(ctx, path)
		}
	}
}

// schedule (re)starts the settle timer of path
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(path)
}

// scheduleLocked requires w.mu. A timer that already fired but whose
// callback has not taken the lock yet is replaced, and the stale callback
// drops the path.
func (w *Watcher) scheduleLocked(path string) {
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settleDelay)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(w.settleDelay, func() {
		w.mu.Lock()
		current := w.pending[path] == t
		if current {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if !current {
			return
		}
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
	w.pending[path] = t
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to read file")
		return false
	}

	_, err = w.ingester.Ingest(ctx, &models.IngestRequest{
		Name:    filepath.Base(path),
		Format:  extract.FormatFromFilename(path),
		Content: data,
		Source:  SourceWatcher,
	})
	if errors.Is(err, plagiarism.ErrDuplicateDocument) {
		log.Debug().Str("path", path).Msg("Document already in corpus, skipping")
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to ingest file")
		return false
	}

	return true
}
