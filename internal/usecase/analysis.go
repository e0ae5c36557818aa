package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/body-analyzer/internal/bodymetrics"
	"github.com/example/body-analyzer/internal/logging"
	"github.com/example/body-analyzer/internal/poseestimator"
	"github.com/example/body-analyzer/internal/repository"
)

// AnalysisRepository defines the persistence operations needed by the use case.
type AnalysisRepository interface {
	SaveLog(ctx context.Context, log *repository.AnalysisLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.AnalysisLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.AnalysisLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// AnalysisUseCase orchestrates pose estimation, the measurement engine,
// caching, and persistence for each uploaded image.
type AnalysisUseCase struct {
	repo           AnalysisRepository
	cache          Cache
	estimator      poseestimator.Client
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type cachedAnalysis struct {
	RequestID string          `json:"request_id"`
	UserID    string          `json:"user_id"`
	BodyShape string          `json:"body_shape"`
	SkinTone  string          `json:"skin_tone"`
	Result    json.RawMessage `json:"result"`
	Hash      string          `json:"sha1_hash"`
	CreatedAt time.Time       `json:"created_at"`
}

// DuplicateReport lists re-uploads of the same image by the same user.
type DuplicateReport struct {
	Request    *repository.AnalysisLog
	Duplicates []*repository.AnalysisLog
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(repo AnalysisRepository, cache Cache, estimator poseestimator.Client, logger *zap.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		repo:           repo,
		cache:          cache,
		estimator:      estimator,
		logger:         logger.Named("analysis_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AnalyzeImage runs the full flow: mark the request as processing, obtain
// landmarks from the pose estimator, derive measurements, persist and cache
// the outcome. The measurement step itself is total; only I/O can fail here.
func (uc *AnalysisUseCase) AnalyzeImage(ctx context.Context, userID string, imageBytes []byte) (string, *bodymetrics.MeasurementResult, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze_image", requestID)

	cacheKey := analysisCacheKey(requestID)
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, "processing", time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return "", nil, err
	}

	estimation, err := uc.estimator.Estimate(ctx, imageBytes)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.pose_estimate", requestID, err)
		opLogger.Error("pose estimation failed", zap.Error(wrapped))
		return "", nil, wrapped
	}

	result := bodymetrics.Analyze(estimation.Keypoints, estimation.SkinColor, estimation.BodyWidth, estimation.ModelAccuracy)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		opLogger.Error("failed to serialize measurement result", zap.Error(err))
		return "", nil, err
	}

	hash := sha1.Sum(imageBytes)
	hashHex := hex.EncodeToString(hash[:])
	log := &repository.AnalysisLog{
		RequestID: requestID,
		UserID:    userID,
		BodyShape: result.BodyShape,
		SkinTone:  result.SkinTone,
		Result:    string(resultJSON),
		SHA1Hash:  hashHex,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", requestID, err)
		opLogger.Error("failed to persist analysis log", zap.Error(wrapped))
		return "", nil, wrapped
	}

	cached := cachedAnalysis{
		RequestID: requestID,
		UserID:    userID,
		BodyShape: log.BodyShape,
		SkinTone:  log.SkinTone,
		Result:    resultJSON,
		Hash:      log.SHA1Hash,
		CreatedAt: log.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize cached analysis", zap.Error(err))
		return "", nil, err
	}

	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache analysis result", zap.Error(err))
		return "", nil, err
	}

	opLogger.Info("analysis complete",
		zap.String("body_shape", result.BodyShape),
		zap.String("skin_tone", result.SkinTone))
	return requestID, &result, nil
}

// GetResult retrieves a cached analysis or falls back to persistence.
func (uc *AnalysisUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.AnalysisLog, error) {
	cacheKey := analysisCacheKey(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var payload cachedAnalysis
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to decode cached analysis", zap.Error(err))
		} else if payload.RequestID != "" {
			log := &repository.AnalysisLog{
				RequestID: payload.RequestID,
				UserID:    userID,
				BodyShape: payload.BodyShape,
				SkinTone:  payload.SkinTone,
				Result:    string(payload.Result),
				SHA1Hash:  payload.Hash,
				CreatedAt: payload.CreatedAt,
			}
			if payload.UserID != "" {
				log.UserID = payload.UserID
			}
			return log, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// GetDuplicateReport lists same-image analyses for a verification request.
func (uc *AnalysisUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, log.SHA1Hash, log.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{Request: log, Duplicates: duplicates}, nil
}

func analysisCacheKey(requestID string) string {
	return fmt.Sprintf("analysis:%s", requestID)
}

func (uc *AnalysisUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *AnalysisUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
