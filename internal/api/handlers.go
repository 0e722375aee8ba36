package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/RishiKendai/veritas/internal/config"
	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/ingest"
	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/RishiKendai/veritas/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CheckService extracts uploaded files, checks them and adds them to the corpus
type CheckService interface {
	Check(ctx context.Context, checkID string, req *models.IngestRequest) (*plagiarism.CheckOutcome, error)
	Ingest(ctx context.Context, req *models.IngestRequest) (*models.Document, error)
}

// DocumentStore is the admin view of the corpus
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	UpdateDocumentContent(ctx context.Context, id, content, hash string) error
}

type ReportReader interface {
	GetReportByCheckID(ctx context.Context, checkID string) (*models.ComparisonReport, error)
}

type StageReader interface {
	GetStage(ctx context.Context, checkID string) (models.Stage, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.Admin, error)
}

// Handler holds dependencies for handlers
type Handler struct {
	cfg          *config.Config
	checks       CheckService
	documents    DocumentStore
	reports      ReportReader
	stages       StageReader
	admins       Authenticator
	checkSem     chan struct{} // Semaphore for bounded concurrency
	checkTimeout time.Duration
}

// NewHandler creates a new handler
func NewHandler(
	cfg *config.Config,
	checks CheckService,
	documents DocumentStore,
	reports ReportReader,
	stages StageReader,
	admins Authenticator,
) *Handler {
	return &Handler{
		cfg:          cfg,
		checks:       checks,
		documents:    documents,
		reports:      reports,
		stages:       stages,
		admins:       admins,
		checkSem:     make(chan struct{}, cfg.MaxConcurrentChecks),
		checkTimeout: cfg.CheckTimeout(),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	admin, err := h.admins.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error: "Invalid username or password",
				Code:  "INVALID_CREDENTIALS",
			})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to authenticate admin")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to authenticate",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	token, expiresAt, err := IssueToken(h.cfg.JWTSecret, h.cfg.JWTIssuer, admin.Username, h.cfg.JWTTTL())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// Check compares an uploaded file against the corpus and stores it
func (h *Handler) Check(c *gin.Context) {
	req, ok := h.readUpload(c, ingest.SourceHTTP)
	if !ok {
		return
	}

	// Acquire semaphore (bounded concurrency)
	ctx := c.Request.Context()
	select {
	case h.checkSem <- struct{}{}:
		defer func() { <-h.checkSem }()
	case <-ctx.Done():
		c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Error: "Request cancelled",
			Code:  "REQUEST_TIMEOUT",
		})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	checkID := uuid.New().String()
	outcome, err := h.checks.Check(ctx, checkID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CheckResponse{
		CheckID:          checkID,
		DocumentID:       outcome.Document.ID,
		ComparisonResult: *outcome.Result,
	})
}

func (h *Handler) GetCheckReport(c *gin.Context) {
	checkID := c.Param("id")
	report, err := h.reports.GetReportByCheckID(c.Request.Context(), checkID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetCheckStatus(c *gin.Context) {
	checkID := c.Param("id")
	stage, err := h.stages.GetStage(c.Request.Context(), checkID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CheckStatusResponse{
		Stage:   stage,
		CheckID: checkID,
	})
}

// ListDocuments returns the corpus, newest first
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.documents.ListDocuments(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, docs)
}

// UploadDocument adds a file to the corpus without comparing it
func (h *Handler) UploadDocument(c *gin.Context) {
	req, ok := h.readUpload(c, ingest.SourceHTTP)
	if !ok {
		return
	}

	doc, err := h.checks.Ingest(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// UpdateDocument replaces the content of a stored document. The new content
// is normalized the same way ingested files are.
func (h *Handler) UpdateDocument(c *gin.Context) {
	var req models.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file_content is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	normalized := plagiarism.Normalize(*req.FileContent)
	if normalized == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file_content has no text",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.documents.UpdateDocumentContent(ctx, id, normalized, plagiarism.ContentHash(normalized)); err != nil {
		writeServiceError(c, err)
		return
	}

	doc, err := h.documents.GetDocument(ctx, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.documents.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// readUpload reads the multipart "file" field. On failure the error response
// has already been written.
func (h *Handler) readUpload(c *gin.Context, source string) (*models.IngestRequest, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "File is too large",
				Code:  "FILE_TOO_LARGE",
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "No file uploaded",
			Code:  "NO_FILE",
		})
		return nil, false
	}

	if header.Size > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "File is too large",
			Code:  "FILE_TOO_LARGE",
		})
		return nil, false
	}

	name := strings.TrimSpace(header.Filename)
	format := extract.FormatFromFilename(name)
	if !extract.IsSupported(format) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("Unsupported file type, expected one of %s", strings.Join(extract.SupportedFormats(), ", ")),
			Code:  "UNSUPPORTED_FORMAT",
		})
		return nil, false
	}

	data, err := readFormFile(header)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to read uploaded file")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Failed to read uploaded file",
			Code:  "INVALID_REQUEST",
		})
		return nil, false
	}

	return &models.IngestRequest{
		Name:    name,
		Format:  format,
		Content: data,
		Source:  source,
	}, true
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// writeServiceError maps domain errors to responses
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, plagiarism.ErrDuplicateDocument):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "Document already exists",
			Code:  "DOCUMENT_EXISTS",
		})
	case errors.Is(err, plagiarism.ErrEmptyDocumentName):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	case errors.Is(err, extract.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Unsupported file type",
			Code:  "UNSUPPORTED_FORMAT",
		})
	case errors.Is(err, extract.ErrExtractionFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Could not read text from the file",
			Code:  "EXTRACTION_FAILED",
		})
	case errors.Is(err, repository.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Document not found",
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, repository.ErrReportNotFound), errors.Is(err, plagiarism.ErrUnknownCheck):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Check not found",
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error: "Check timed out",
			Code:  "TIMEOUT",
		})
	default:
		_ = c.Error(err)
	}
}
