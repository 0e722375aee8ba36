package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const documentsCollection = "documents"

// DocumentsRepository stores the corpus. Unique indexes make the
// duplicate check and the insert one atomic operation.
type DocumentsRepository struct {
	mongoRepo *MongoRepository
}

func NewDocumentsRepository(mongoRepo *MongoRepository) *DocumentsRepository {
	return &DocumentsRepository{
		mongoRepo: mongoRepo,
	}
}

// EnsureIndexes creates the unique name index, and the unique content hash
// index when the content hash duplicate policy is active
func (r *DocumentsRepository) EnsureIndexes(ctx context.Context, policy plagiarism.DuplicatePolicy) error {
	hashIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "contentHash", Value: 1}},
		Options: options.Index().SetName("contentHash_lookup"),
	}
	if policy == plagiarism.DuplicateByContentHash {
		hashIndex.Options = options.Index().SetName("contentHash_unique").SetUnique(true)
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
		hashIndex,
	}

	names, err := r.mongoRepo.GetCollection(documentsCollection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create document indexes: %w", err)
	}

	log.Debug().Strs("indexes", names).Str("policy", string(policy)).Msg("Document indexes ensured")
	return nil
}

func (r *DocumentsRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, bson.M{"name": name})
}

func (r *DocumentsRepository) ExistsByContentHash(ctx context.Context, hash string) (bool, error) {
	return r.exists(ctx, bson.M{"contentHash": hash})
}

func (r *DocumentsRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})

	var found bson.M
	err := r.mongoRepo.FindOne(ctx, documentsCollection, filter, opts).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to find document: %w", err)
	}

	return true, nil
}

func (r *DocumentsRepository) InsertDocument(ctx context.Context, doc *models.Document) (string, error) {
	stored := *doc
	stored.ID = uuid.New().String()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
		stored.UpdatedAt = stored.CreatedAt
	}

	err := r.mongoRepo.InsertOne(ctx, documentsCollection, &stored)
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%w: %s", plagiarism.ErrDuplicateDocument, doc.Name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	return stored.ID, nil
}

// ListOtherDocuments returns up to limit documents other than excludeID, newest first
func (r *DocumentsRepository) ListOtherDocuments(ctx context.Context, excludeID string, limit int) ([]models.Document, error) {
	filter := bson.M{}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return r.find(ctx, filter, opts)
}

func (r *DocumentsRepository) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return r.ListOtherDocuments(ctx, "", 0)
}

func (r *DocumentsRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Document, error) {
	cursor, err := r.mongoRepo.FindMany(ctx, documentsCollection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make([]models.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	return docs, nil
}

func (r *DocumentsRepository) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := r.mongoRepo.FindOne(ctx, documentsCollection, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	return &doc, nil
}

func (r *DocumentsRepository) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.mongoRepo.DeleteOne(ctx, documentsCollection, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// UpdateDocumentContent replaces the normalized content of a document
func (r *DocumentsRepository) UpdateDocumentContent(ctx context.Context, id, content, hash string) error {
	update := bson.M{"$set": bson.M{
		"content":     content,
		"contentHash": hash,
		"updatedAt":   time.Now(),
	}}

	res, err := r.mongoRepo.UpdateOne(ctx, documentsCollection, bson.M{"_id": id}, update)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: content already stored", plagiarism.ErrDuplicateDocument)
	}
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDocumentNotFound
	}

	return nil
}
