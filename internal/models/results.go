package models

import (
	"time"
)

type Stage string

const (
	StageIdle            Stage = "idle"
	StageNormalize       Stage = "normalize"
	StageCheckDuplicate  Stage = "check_duplicate"
	StageScore           Stage = "score"
	StageExtractSegments Stage = "extract_segments"
	StageAggregate       Stage = "aggregate"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

const (
	StatusSuccess         = "success"
	StatusOnlyOneDocument = "only one document"
)

// MatchSegment is a literal span shared by the query and one source document.
// Offsets are rune offsets into the normalized texts, end exclusive.
type MatchSegment struct {
	Text               string  `bson:"text" json:"text"`
	SourceText         string  `bson:"sourceText" json:"source_text"`
	StartIdx           int     `bson:"startIdx" json:"start_idx"`
	EndIdx             int     `bson:"endIdx" json:"end_idx"`
	SourceStartIdx     int     `bson:"sourceStartIdx" json:"source_start_idx"`
	SourceEndIdx       int     `bson:"sourceEndIdx" json:"source_end_idx"`
	Similarity         float64 `bson:"similarity" json:"similarity"`
	DocumentSimilarity float64 `bson:"documentSimilarity" json:"document_similarity"`
	SourceDocID        string  `bson:"sourceDocId" json:"source_doc_id"`
	SourceDocName      string  `bson:"sourceDocName" json:"source_doc_name"`
}

// ComparisonResult is the outcome of comparing one document against the corpus
type ComparisonResult struct {
	SimilarityScore  float64        `bson:"similarityScore" json:"similarity_score"`
	Plagiarized      bool           `bson:"plagiarized" json:"plagiarized"`
	MatchingSegments []MatchSegment `bson:"matchingSegments" json:"matching_segments"`
	Status           string         `bson:"status" json:"status"`
}

// ComparisonReport is a persisted check, retrievable by its check ID
type ComparisonReport struct {
	CheckID      string           `bson:"checkId" json:"check_id"`
	DocumentID   string           `bson:"documentId" json:"document_id"`
	DocumentName string           `bson:"documentName" json:"document_name"`
	Format       string           `bson:"format" json:"file_type"`
	Result       ComparisonResult `bson:"result" json:"result"`
	CreatedAt    time.Time        `bson:"createdAt" json:"created_at"`
}

// CheckResponse represents the response from the check endpoint
type CheckResponse struct {
	CheckID    string `json:"check_id"`
	DocumentID string `json:"document_id"`
	ComparisonResult
}

// CheckStatusResponse represents the response from the status endpoint
type CheckStatusResponse struct {
	Stage   Stage  `json:"stage"`
	CheckID string `json:"check_id"`
}

// Admin is an account allowed to manage the corpus
type Admin struct {
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"`
}

// LoginRequest represents the admin login payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued admin token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
