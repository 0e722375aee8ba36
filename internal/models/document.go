package models

import (
	"time"
)

// Document represents a corpus document stored in MongoDB.
// Content always holds the normalized form of the extracted text.
type Document struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"file_name"`
	Format      string    `bson:"format" json:"file_type"`
	Content     string    `bson:"content" json:"file_content"`
	ContentHash string    `bson:"contentHash" json:"content_hash"`
	CreatedAt   time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updated_at"`
}

// Chunk is a group of consecutive sentences taken from a query document
type Chunk struct {
	Index int
	Text  string
}

// IngestRequest carries one file to add to the corpus
type IngestRequest struct {
	Name    string
	Format  string
	Content []byte
	Source  string // http, stream, watcher, cli
}

// UpdateDocumentRequest is the admin payload for replacing a document's content
type UpdateDocumentRequest struct {
	FileContent *string `json:"file_content" binding:"required"`
}
