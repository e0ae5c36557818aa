package poseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/body-analyzer/internal/bodymetrics"
	"github.com/example/body-analyzer/internal/logging"
	"github.com/example/body-analyzer/internal/poseestimator"
)

const estimateTimeout = 30 * time.Second

// New returns a pose-estimation client that posts images to the estimation
// service's /analyze endpoint as multipart uploads.
func New(baseURL string, logger *zap.Logger) poseestimator.Client {
	return &httpPoseEstimator{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: estimateTimeout,
		},
		logger: logger,
	}
}

type httpPoseEstimator struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// analyzeResponse mirrors the estimation service's wire format. body_width
// arrives with legacy zero sentinels for "not measured".
type analyzeResponse struct {
	Keypoints     bodymetrics.Keypoints   `json:"keypoints"`
	SkinColor     *bodymetrics.SkinSample `json:"skin_color"`
	BodyWidth     *bodyWidthPayload       `json:"body_width"`
	ModelAccuracy json.RawMessage         `json:"model_accuracy"`
}

type bodyWidthPayload struct {
	ShoulderPx *float64 `json:"shoulder_px"`
	WaistPx    *float64 `json:"waist_px"`
	HipPx      *float64 `json:"hip_px"`
}

func (p *httpPoseEstimator) Estimate(ctx context.Context, imageBytes []byte) (*poseestimator.Estimation, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "upload.jpg")
	if err == nil {
		_, err = part.Write(imageBytes)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return nil, logging.NewOperationError("poseclient.build_request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/analyze", body)
	if err != nil {
		return nil, logging.NewOperationError("poseclient.build_request", "", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("poseclient.estimate", "", err)
		p.logger.Error("pose estimation call failed", zap.Error(wrapped), zap.String("base_url", p.baseURL))
		return nil, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		wrapped := logging.NewOperationError("poseclient.estimate", "",
			fmt.Errorf("pose estimator returned status %d", resp.StatusCode))
		p.logger.Error("pose estimation rejected request", zap.Error(wrapped), zap.Int("status", resp.StatusCode))
		return nil, wrapped
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, logging.NewOperationError("poseclient.read_response", "", err)
	}

	var decoded analyzeResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, logging.NewOperationError("poseclient.decode_response", "", err)
	}

	return &poseestimator.Estimation{
		Keypoints:     decoded.Keypoints,
		SkinColor:     decoded.SkinColor,
		BodyWidth:     decoded.BodyWidth.hint(),
		ModelAccuracy: decoded.ModelAccuracy,
	}, nil
}

// hint converts the wire payload into a width hint, dropping the legacy zero
// sentinels so "not measured" stays distinguishable from a real zero.
func (w *bodyWidthPayload) hint() *bodymetrics.BodyWidthHint {
	if w == nil {
		return nil
	}
	hint := &bodymetrics.BodyWidthHint{
		ShoulderPx: positive(w.ShoulderPx),
		WaistPx:    positive(w.WaistPx),
		HipPx:      positive(w.HipPx),
	}
	if hint.ShoulderPx == nil && hint.WaistPx == nil && hint.HipPx == nil {
		return nil
	}
	return hint
}

func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
