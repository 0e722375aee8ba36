package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RishiKendai/veritas/internal/config"
	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/ingest"
	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/RishiKendai/veritas/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "veritas-test"
)

type fakeReports struct {
	reports map[string]*models.ComparisonReport
	err     error
}

func (f *fakeReports) InsertReport(_ context.Context, report *models.ComparisonReport) error {
	f.reports[report.CheckID] = report
	return nil
}

func (f *fakeReports) GetReportByCheckID(_ context.Context, checkID string) (*models.ComparisonReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	report, ok := f.reports[checkID]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	return report, nil
}

type fakeStages map[string]models.Stage

func (f fakeStages) GetStage(_ context.Context, checkID string) (models.Stage, error) {
	stage, ok := f[checkID]
	if !ok {
		return "", plagiarism.ErrUnknownCheck
	}
	return stage, nil
}

type fakeAdmins struct {
	username string
	password string
}

func (f fakeAdmins) Authenticate(_ context.Context, username, password string) (*models.Admin, error) {
	if username != f.username || password != f.password {
		return nil, repository.ErrInvalidCredentials
	}
	return &models.Admin{Username: username}, nil
}

type testServer struct {
	router  *gin.Engine
	store   *repository.MemoryDocumentStore
	reports *fakeReports
	stages  fakeStages
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           testSecret,
		JWTIssuer:           testIssuer,
		JWTTTLMinutes:       60,
		RateLimitRPS:        1000,
		MaxConcurrentChecks: 2,
		CheckTimeoutSeconds: 10,
		MaxUploadBytes:      1 << 20,
		CORSOrigin:          "http://localhost:3000",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	thresholds := plagiarism.DefaultThresholds()
	store := repository.NewMemoryDocumentStore(thresholds.DuplicatePolicy)
	reports := &fakeReports{reports: make(map[string]*models.ComparisonReport)}
	stages := fakeStages{}
	service := ingest.NewService(plagiarism.NewEngine(store, thresholds), reports)

	handler := NewHandler(cfg, service, store, reports, stages, fakeAdmins{username: "admin", password: "secret"})

	return &testServer{
		router:  SetupRoutes(cfg, handler),
		store:   store,
		reports: reports,
		stages:  stages,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, method, path, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := IssueToken(testSecret, testIssuer, "admin", time.Hour)
	require.NoError(t, err)
	return token
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestCheck_FirstDocument(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(uploadRequest(t, http.MethodPost, "/api/v1/check", "essay.txt", []byte("The quick brown fox.")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.CheckResponse](t, w)
	assert.NotEmpty(t, resp.CheckID)
	assert.NotEmpty(t, resp.DocumentID)
	assert.Equal(t, models.StatusOnlyOneDocument, resp.Status)
	assert.False(t, resp.Plagiarized)
	assert.Empty(t, resp.MatchingSegments)
	assert.Equal(t, 1, s.store.Len())
	assert.Contains(t, s.reports.reports, resp.CheckID)
}

func TestCheck_CopiedDocument(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(uploadRequest(t, http.MethodPost, "/api/v1/check", "classic.txt",
		[]byte("The quick brown fox jumps over the lazy dog, a classic sentence.")))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(uploadRequest(t, http.MethodPost, "/api/v1/check", "copy.txt",
		[]byte("The quick brown fox jumps over the lazy dog.")))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.CheckResponse](t, w)
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.True(t, resp.Plagiarized)
	require.NotEmpty(t, resp.MatchingSegments)
	assert.Equal(t, "classic.txt", resp.MatchingSegments[0].SourceDocName)

	report := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/"+resp.CheckID, nil))
	require.Equal(t, http.StatusOK, report.Code)
	stored := decode[models.ComparisonReport](t, report)
	assert.Equal(t, "copy.txt", stored.DocumentName)
	assert.Equal(t, resp.SimilarityScore, stored.Result.SimilarityScore)
}

func TestCheck_Errors(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(uploadRequest(t, http.MethodPost, "/api/v1/check", "essay.txt", []byte("Some essay text.")))
	require.Equal(t, http.StatusOK, w.Code)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "duplicate name",
			req:      uploadRequest(t, http.MethodPost, "/api/v1/check", "essay.txt", []byte("Other text.")),
			wantCode: http.StatusConflict,
			wantErr:  "DOCUMENT_EXISTS",
		},
		{
			name:     "unsupported format",
			req:      uploadRequest(t, http.MethodPost, "/api/v1/check", "image.png", []byte("png")),
			wantCode: http.StatusBadRequest,
			wantErr:  "UNSUPPORTED_FORMAT",
		},
		{
			name:     "no readable text",
			req:      uploadRequest(t, http.MethodPost, "/api/v1/check", "blank.txt", []byte("   ")),
			wantCode: http.StatusBadRequest,
			wantErr:  "EXTRACTION_FAILED",
		},
		{
			name:     "no file",
			req:      httptest.NewRequest(http.MethodPost, "/api/v1/check", nil),
			wantCode: http.StatusBadRequest,
			wantErr:  "NO_FILE",
		},
		{
			name:     "too large",
			req:      uploadRequest(t, http.MethodPost, "/api/v1/check", "big.txt", bytes.Repeat([]byte("a "), 1<<19+5)),
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.req)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, w).Code)
		})
	}

	assert.Equal(t, 1, s.store.Len())
}

func TestGetCheckReport(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, w).Code)

	s.reports.err = errors.New("connection refused")
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/any", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode[ErrorResponse](t, w).Code)
}

func TestGetCheckStatus(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.stages["abc"] = models.StageScore

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/abc/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.CheckStatusResponse](t, w)
	assert.Equal(t, models.StageScore, resp.Stage)
	assert.Equal(t, "abc", resp.CheckID)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/unknown/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, testConfig())

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return s.do(req)
	}

	w := login(`{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.LoginResponse](t, w)
	assert.NotEmpty(t, resp.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	claims, err := parseToken(testSecret, testIssuer, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	w = login(`{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[ErrorResponse](t, w).Code)

	w = login(`{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocuments_RequireToken(t *testing.T) {
	s := newTestServer(t, testConfig())

	expired, _, err := IssueToken(testSecret, testIssuer, "admin", -time.Minute)
	require.NoError(t, err)
	foreign, _, err := IssueToken("other-secret", testIssuer, "admin", time.Hour)
	require.NoError(t, err)
	wrongIssuer, _, err := IssueToken(testSecret, "someone-else", "admin", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage", header: "Bearer not-a-token"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong secret", header: "Bearer " + foreign},
		{name: "wrong issuer", header: "Bearer " + wrongIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := s.do(req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHORIZED", decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestDocuments_Lifecycle(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := adminToken(t)

	w := s.do(withToken(uploadRequest(t, http.MethodPost, "/api/v1/documents", "notes.md", []byte("# Notes\n\nRivers carve valleys.")), token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[models.Document](t, w)
	assert.Equal(t, "notes.md", doc.Name)
	assert.Equal(t, extract.FormatMarkdown, doc.Format)
	assert.Equal(t, "notes rivers carve valleys", doc.Content)

	w = s.do(withToken(uploadRequest(t, http.MethodPost, "/api/v1/documents", "notes.md", []byte("again")), token))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(withToken(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil), token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Document](t, w), 1)

	update := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/documents/"+id, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return s.do(withToken(req, token))
	}

	w = update(doc.ID, `{"file_content":"Mountains RISE slowly!"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Document](t, w)
	assert.Equal(t, "mountains rise slowly", updated.Content)
	assert.Equal(t, plagiarism.ContentHash("mountains rise slowly"), updated.ContentHash)

	w = update(doc.ID, `{"file_content":"?!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = update(doc.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = update("missing", `{"file_content":"text"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(withToken(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+doc.ID, nil), token))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.store.Len())

	w = s.do(withToken(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+doc.ID, nil), token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig())

	w := s.do(httptest.NewRequest(http.MethodOptions, "/api/v1/check", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	s := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/x/status", nil)).Code)
	}

	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)

	// Health is outside the limited group
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestWriteServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{plagiarism.ErrDuplicateDocument, http.StatusConflict, "DOCUMENT_EXISTS"},
		{plagiarism.ErrEmptyDocumentName, http.StatusBadRequest, "INVALID_REQUEST"},
		{extract.ErrUnsupportedFormat, http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{extract.ErrExtractionFailed, http.StatusBadRequest, "EXTRACTION_FAILED"},
		{repository.ErrDocumentNotFound, http.StatusNotFound, "NOT_FOUND"},
		{repository.ErrReportNotFound, http.StatusNotFound, "NOT_FOUND"},
		{plagiarism.ErrUnknownCheck, http.StatusNotFound, "NOT_FOUND"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr+"/"+tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeServiceError(c, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, w).Code)
			assert.Empty(t, c.Errors)
		})
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeServiceError(c, errors.New("boom"))
	assert.Len(t, c.Errors, 1)
}

func TestRateLimit_AdminsLimitedPerSubject(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	s := newTestServer(t, cfg)

	alice, _, err := IssueToken(testSecret, testIssuer, "alice", time.Hour)
	require.NoError(t, err)
	bob, _, err := IssueToken(testSecret, testIssuer, "bob", time.Hour)
	require.NoError(t, err)

	list := func(token string) int {
		return s.do(withToken(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil), token)).Code
	}

	assert.Equal(t, http.StatusOK, list(alice))
	assert.Equal(t, http.StatusOK, list(alice))
	assert.Equal(t, http.StatusTooManyRequests, list(alice))

	// Same client IP, different admin
	assert.Equal(t, http.StatusOK, list(bob))

	// Anonymous requests from that IP have their own budget
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/x/status", nil)).Code)
}
