package plagiarism

import (
	"context"

	"github.com/RishiKendai/veritas/internal/models"
)

// CorpusStore is the storage the engine reads the corpus from and records
// new documents into. InsertDocument must reject duplicates atomically with
// ErrDuplicateDocument. DeleteDocument undoes the insert of a failed check.
type CorpusStore interface {
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByContentHash(ctx context.Context, hash string) (bool, error)
	InsertDocument(ctx context.Context, doc *models.Document) (string, error)
	ListOtherDocuments(ctx context.Context, excludeID string, limit int) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// StageObserver is told about every stage a check enters
type StageObserver interface {
	UpdateStage(ctx context.Context, checkID string, stage models.Stage) error
}
