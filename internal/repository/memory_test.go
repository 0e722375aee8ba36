package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insert(t *testing.T, s *MemoryDocumentStore, name, content string) string {
	t.Helper()
	id, err := s.InsertDocument(context.Background(), &models.Document{
		Name:        name,
		Content:     content,
		ContentHash: plagiarism.ContentHash(content),
	})
	require.NoError(t, err)
	return id
}

func TestMemoryDocumentStore_InsertAndExists(t *testing.T) {
	s := NewMemoryDocumentStore(plagiarism.DuplicateByName)
	ctx := context.Background()

	id := insert(t, s, "a.txt", "alpha")
	assert.NotEmpty(t, id)

	ok, err := s.ExistsByName(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExistsByContentHash(ctx, plagiarism.ContentHash("alpha"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExistsByName(ctx, "b.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDocumentStore_DuplicateName(t *testing.T) {
	s := NewMemoryDocumentStore(plagiarism.DuplicateByName)
	insert(t, s, "a.txt", "alpha")

	_, err := s.InsertDocument(context.Background(), &models.Document{Name: "a.txt", Content: "beta"})
	assert.ErrorIs(t, err, plagiarism.ErrDuplicateDocument)
	assert.Equal(t, 1, s.Len())

	// Same content under another name is allowed by the name policy
	insert(t, s, "b.txt", "alpha")
	assert.Equal(t, 2, s.Len())
}

func TestMemoryDocumentStore_DuplicateHash(t *testing.T) {
	s := NewMemoryDocumentStore(plagiarism.DuplicateByContentHash)
	insert(t, s, "a.txt", "alpha")

	_, err := s.InsertDocument(context.Background(), &models.Document{
		Name:        "b.txt",
		Content:     "alpha",
		ContentHash: plagiarism.ContentHash("alpha"),
	})
	assert.ErrorIs(t, err, plagiarism.ErrDuplicateDocument)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryDocumentStore_ConcurrentInsertSameName(t *testing.T) {
	s := NewMemoryDocumentStore(plagiarism.DuplicateByName)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertDocument(context.Background(), &models.Document{Name: "race.txt"})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryDocumentStore_ListOtherDocuments(t *testing.T) {
	s := NewMemoryDocumentStore(plagiarism.DuplicateByName)
	ctx := context.Background()

	first := insert(t, s, "1.txt", "one")
	insert(t, s, "2.txt", "two")
	third := insert(t, s, "3.txt", "three")

	docs, err := s.ListOtherDocuments(ctx, third, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "2.txt", docs[0].Name)
	assert.Equal(t, "1.txt", docs[1].Name)

	docs, err = s.ListOtherDocuments(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "3.txt", docs[0].Name)

	all, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, first, all[2].ID)
}

func TestMemoryDocumentStore_GetUpdateDelete(t *testing.T) {
	s := NewMemoryDocumentStore(plagiarism.DuplicateByContentHash)
	ctx := context.Background()

	id := insert(t, s, "a.txt", "alpha")
	insert(t, s, "b.txt", "beta")

	doc, err := s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc.Content)

	require.NoError(t, s.UpdateDocumentContent(ctx, id, "gamma", plagiarism.ContentHash("gamma")))
	doc, err = s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "gamma", doc.Content)

	err = s.UpdateDocumentContent(ctx, id, "beta", plagiarism.ContentHash("beta"))
	assert.ErrorIs(t, err, plagiarism.ErrDuplicateDocument)

	assert.ErrorIs(t, s.UpdateDocumentContent(ctx, "missing", "x", "y"), ErrDocumentNotFound)

	require.NoError(t, s.DeleteDocument(ctx, id))
	_, err = s.GetDocument(ctx, id)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, id), ErrDocumentNotFound)
	assert.Equal(t, 1, s.Len())
}
