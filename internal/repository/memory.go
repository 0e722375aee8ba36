package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/google/uuid"
)

// MemoryDocumentStore keeps the corpus in process memory. It backs the
// offline CLI and tests.
type MemoryDocumentStore struct {
	mu         sync.RWMutex
	docs       []models.Document // insertion order
	uniqueHash bool
}

func NewMemoryDocumentStore(policy plagiarism.DuplicatePolicy) *MemoryDocumentStore {
	return &MemoryDocumentStore{
		uniqueHash: policy == plagiarism.DuplicateByContentHash,
	}
}

func (s *MemoryDocumentStore) ExistsByName(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexWhere(func(d *models.Document) bool { return d.Name == name }) >= 0, nil
}

func (s *MemoryDocumentStore) ExistsByContentHash(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexWhere(func(d *models.Document) bool { return d.ContentHash == hash }) >= 0, nil
}

// InsertDocument checks uniqueness and inserts under one lock
func (s *MemoryDocumentStore) InsertDocument(_ context.Context, doc *models.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexWhere(func(d *models.Document) bool { return d.Name == doc.Name }) >= 0 {
		return "", fmt.Errorf("%w: %s", plagiarism.ErrDuplicateDocument, doc.Name)
	}
	if s.uniqueHash && s.indexWhere(func(d *models.Document) bool { return d.ContentHash == doc.ContentHash }) >= 0 {
		return "", fmt.Errorf("%w: %s", plagiarism.ErrDuplicateDocument, doc.Name)
	}

	stored := *doc
	stored.ID = uuid.New().String()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
		stored.UpdatedAt = stored.CreatedAt
	}
	s.docs = append(s.docs, stored)

	return stored.ID, nil
}

// ListOtherDocuments returns up to limit documents, newest first
func (s *MemoryDocumentStore) ListOtherDocuments(_ context.Context, excludeID string, limit int) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]models.Document, 0, len(s.docs))
	for i := len(s.docs) - 1; i >= 0; i-- {
		if s.docs[i].ID == excludeID {
			continue
		}
		docs = append(docs, s.docs[i])
		if limit > 0 && len(docs) == limit {
			break
		}
	}

	return docs, nil
}

func (s *MemoryDocumentStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return s.ListOtherDocuments(ctx, "", 0)
}

func (s *MemoryDocumentStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexWhere(func(d *models.Document) bool { return d.ID == id })
	if i < 0 {
		return nil, ErrDocumentNotFound
	}
	doc := s.docs[i]
	return &doc, nil
}

func (s *MemoryDocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexWhere(func(d *models.Document) bool { return d.ID == id })
	if i < 0 {
		return ErrDocumentNotFound
	}
	s.docs = append(s.docs[:i], s.docs[i+1:]...)
	return nil
}

func (s *MemoryDocumentStore) UpdateDocumentContent(_ context.Context, id, content, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexWhere(func(d *models.Document) bool { return d.ID == id })
	if i < 0 {
		return ErrDocumentNotFound
	}
	if s.uniqueHash && s.indexWhere(func(d *models.Document) bool { return d.ID != id && d.ContentHash == hash }) >= 0 {
		return fmt.Errorf("%w: %s", plagiarism.ErrDuplicateDocument, s.docs[i].Name)
	}
	s.docs[i].Content = content
	s.docs[i].ContentHash = hash
	s.docs[i].UpdatedAt = time.Now()
	return nil
}

// Len returns the number of stored documents
func (s *MemoryDocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryDocumentStore) indexWhere(match func(*models.Document) bool) int {
	for i := range s.docs {
		if match(&s.docs[i]) {
			return i
		}
	}
	return -1
}
