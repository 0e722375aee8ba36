package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/veritas/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reportsCollection = "comparison_reports"

type ReportsRepository struct {
	mongoRepo *MongoRepository
}

func NewReportsRepository(mongoRepo *MongoRepository) *ReportsRepository {
	return &ReportsRepository{
		mongoRepo: mongoRepo,
	}
}

func (r *ReportsRepository) EnsureIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "checkId", Value: 1}},
		Options: options.Index().SetName("checkId_unique").SetUnique(true),
	}

	if _, err := r.mongoRepo.GetCollection(reportsCollection).Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create report indexes: %w", err)
	}

	return nil
}

func (r *ReportsRepository) InsertReport(ctx context.Context, report *models.ComparisonReport) error {
	report.CreatedAt = time.Now()

	err := r.mongoRepo.InsertOne(ctx, reportsCollection, report)
	if err != nil {
		return fmt.Errorf("failed to insert comparison report: %w", err)
	}

	return nil
}

func (r *ReportsRepository) GetReportByCheckID(ctx context.Context, checkID string) (*models.ComparisonReport, error) {
	filter := bson.M{"checkId": checkID}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var report models.ComparisonReport
	err := r.mongoRepo.FindOne(ctx, reportsCollection, filter, opts).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comparison report: %w", err)
	}

	return &report, nil
}
