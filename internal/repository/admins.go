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
	"golang.org/x/crypto/bcrypt"
)

const adminsCollection = "admins"

// ErrInvalidCredentials is returned when a username/password pair does not match
var ErrInvalidCredentials = errors.New("invalid credentials")

type AdminsRepository struct {
	mongoRepo *MongoRepository
}

func NewAdminsRepository(mongoRepo *MongoRepository) *AdminsRepository {
	return &AdminsRepository{
		mongoRepo: mongoRepo,
	}
}

// UpsertAdmin stores username with a bcrypt hash of password
func (r *AdminsRepository) UpsertAdmin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	filter := bson.M{"username": username}
	update := bson.M{
		"$set":         bson.M{"passwordHash": string(hash)},
		"$setOnInsert": bson.M{"createdAt": time.Now()},
	}

	_, err = r.mongoRepo.UpdateOne(ctx, adminsCollection, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert admin: %w", err)
	}

	return nil
}

// Authenticate returns the admin when password matches the stored hash
func (r *AdminsRepository) Authenticate(ctx context.Context, username, password string) (*models.Admin, error) {
	var admin models.Admin
	err := r.mongoRepo.FindOne(ctx, adminsCollection, bson.M{"username": username}).Decode(&admin)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &admin, nil
}
