package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/body-analyzer/internal/auth"
	"github.com/example/body-analyzer/internal/bodymetrics"
	"github.com/example/body-analyzer/internal/poseestimator"
	"github.com/example/body-analyzer/internal/repository"
	"github.com/example/body-analyzer/internal/usecase"
)

const testJWTSecret = "test-secret"

type stubRepository struct {
	savedLogs []*repository.AnalysisLog
}

func (s *stubRepository) SaveLog(ctx context.Context, log *repository.AnalysisLog) error {
	s.savedLogs = append(s.savedLogs, log)
	return nil
}

func (s *stubRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.AnalysisLog, error) {
	for _, log := range s.savedLogs {
		if log.RequestID == requestID && log.UserID == userID {
			return log, nil
		}
	}
	return nil, errNotFound{}
}

func (s *stubRepository) FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.AnalysisLog, error) {
	return nil, nil
}

func (s *stubRepository) AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error) {
	counts := make(map[string]int64)
	var total int64
	for _, log := range s.savedLogs {
		counts[log.BodyShape]++
		total++
	}
	return &repository.MetricsAggregation{TotalCount: total, ShapeCounts: counts}, nil
}

type errNotFound struct{}

func (errNotFound) Error() string { return "record not found" }

type nopCache struct{}

func (nopCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (nopCache) Get(ctx context.Context, key string) (string, error) {
	return "", errNotFound{}
}

type stubEstimator struct {
	estimation *poseestimator.Estimation
}

func (s *stubEstimator) Estimate(ctx context.Context, imageBytes []byte) (*poseestimator.Estimation, error) {
	return s.estimation, nil
}

func newTestRouter(estimation *poseestimator.Estimation) (*gin.Engine, *stubRepository) {
	gin.SetMode(gin.TestMode)

	repo := &stubRepository{}
	uc := usecase.NewAnalysisUseCase(repo, nopCache{}, &stubEstimator{estimation: estimation}, zap.NewNop())

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, uc, auth.JWTMiddleware(testJWTSecret, ""))
	return router, repo
}

func TestAnalyzeRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter(&poseestimator.Estimation{})

	body, contentType := buildMultipartBody(t, "image/png", []byte("img"))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestAnalyzeRejectsLargeUpload(t *testing.T) {
	router, _ := newTestRouter(&poseestimator.Estimation{})

	token := buildTestToken(t, "user-123")
	body, contentType := buildMultipartBody(t, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestAnalyzeRejectsUnsupportedContentType(t *testing.T) {
	router, _ := newTestRouter(&poseestimator.Estimation{})

	token := buildTestToken(t, "user-123")
	body, contentType := buildMultipartBody(t, "text/plain", []byte("hello"))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestAnalyzeReturnsMeasurementResult(t *testing.T) {
	vis := 0.9
	lm := func(x, y float64) *bodymetrics.Landmark {
		v := vis
		return &bodymetrics.Landmark{X: x, Y: y, Visibility: &v}
	}
	estimation := &poseestimator.Estimation{
		Keypoints: bodymetrics.Keypoints{
			LeftShoulder:  lm(280, 300),
			RightShoulder: lm(360, 300),
			LeftHip:       lm(285, 420),
			RightHip:      lm(355, 420),
		},
		SkinColor: &bodymetrics.SkinSample{ToneCategory: "Medium"},
	}
	router, repo := newTestRouter(estimation)

	token := buildTestToken(t, "user-123")
	body, contentType := buildMultipartBody(t, "image/jpeg", []byte("img"))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}

	var payload struct {
		RequestID string                        `json:"request_id"`
		Result    bodymetrics.MeasurementResult `json:"result"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.RequestID == "" {
		t.Fatal("expected a request id")
	}
	if payload.Result.BodyShape != bodymetrics.ShapeBalanced {
		t.Fatalf("expected balanced shape, got %q", payload.Result.BodyShape)
	}
	if payload.Result.ShoulderToWaistRatio == nil || *payload.Result.ShoulderToWaistRatio != "1.14" {
		t.Fatalf("expected ratio 1.14, got %v", payload.Result.ShoulderToWaistRatio)
	}
	if len(repo.savedLogs) != 1 || repo.savedLogs[0].UserID != "user-123" {
		t.Fatalf("expected one log for user-123, got %+v", repo.savedLogs)
	}

	// The persisted result is retrievable through the result endpoint.
	req = httptest.NewRequest(http.MethodGet, "/result/"+payload.RequestID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, repo := newTestRouter(&poseestimator.Estimation{})
	repo.savedLogs = []*repository.AnalysisLog{
		{RequestID: "a", BodyShape: bodymetrics.ShapeBalanced},
		{RequestID: "b", BodyShape: bodymetrics.ShapeUnknown},
	}

	token := buildTestToken(t, "user-123")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	var summary usecase.MetricsSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.TotalRequests != 2 || summary.ClassifiedRequests != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
