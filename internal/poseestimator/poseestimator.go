package poseestimator

import (
	"context"
	"encoding/json"

	"github.com/example/body-analyzer/internal/bodymetrics"
)

// Estimation is the upstream pose-estimation outcome for one image: the
// detected landmarks plus the optional precomputed payloads. ModelAccuracy
// is kept as raw JSON because the engine forwards it verbatim.
type Estimation struct {
	Keypoints     bodymetrics.Keypoints
	SkinColor     *bodymetrics.SkinSample
	BodyWidth     *bodymetrics.BodyWidthHint
	ModelAccuracy json.RawMessage
}

// Client exposes the subset of the pose-estimation service used by the
// analysis flow.
type Client interface {
	Estimate(ctx context.Context, imageBytes []byte) (*Estimation, error)
}
