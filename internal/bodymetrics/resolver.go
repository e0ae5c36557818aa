package bodymetrics

import (
	"fmt"
	"math"
)

// Body shape labels derived from the shoulder-to-waist ratio.
const (
	ShapeInvertedTriangle = "Inverted Triangle (broad shoulders)"
	ShapePear             = "Pear (narrow shoulders, wider waist)"
	ShapeBalanced         = "Balanced (proportional shoulders & waist)"
	ShapeUnknown          = "Unknown"
)

// Classification boundaries, inclusive on the balanced side.
const (
	broadShoulderRatio  = 1.2
	narrowShoulderRatio = 0.8
)

// BodyWidthHint carries precomputed widths supplied by the caller. Non-nil
// values win over keypoint-derived distances; HipPx is a legacy alias for
// WaistPx and is only consulted when WaistPx is nil.
type BodyWidthHint struct {
	ShoulderPx *float64 `json:"shoulder_px,omitempty"`
	WaistPx    *float64 `json:"waist_px,omitempty"`
	HipPx      *float64 `json:"hip_px,omitempty"`
}

// Geometry is the resolver's output. Nil pointers mean "not computable";
// a zero value is real data (a supplied zero-width hint stays zero).
type Geometry struct {
	ShoulderPx    *float64
	WaistPx       *float64
	Ratio         *string
	BodyShape     string
	TorsoLengthPx *float64
}

// torsoStrategy is one candidate way to measure torso length. Strategies are
// tried in order; the first that succeeds wins.
type torsoStrategy func(kp Keypoints) (float64, bool)

var torsoStrategies = []torsoStrategy{
	// Left side: shoulder to hip.
	func(kp Keypoints) (float64, bool) {
		if !kp.LeftShoulder.Usable() || !kp.LeftHip.Usable() {
			return 0, false
		}
		return pixelDistance(kp.LeftShoulder, kp.LeftHip)
	},
	// Right side.
	func(kp Keypoints) (float64, bool) {
		if !kp.RightShoulder.Usable() || !kp.RightHip.Usable() {
			return 0, false
		}
		return pixelDistance(kp.RightShoulder, kp.RightHip)
	},
	// Midline: shoulder midpoint to hip midpoint, needs all four points.
	func(kp Keypoints) (float64, bool) {
		if !kp.LeftShoulder.Usable() || !kp.RightShoulder.Usable() ||
			!kp.LeftHip.Usable() || !kp.RightHip.Usable() {
			return 0, false
		}
		return pixelDistance(midpoint(kp.LeftShoulder, kp.RightShoulder), midpoint(kp.LeftHip, kp.RightHip))
	},
}

// Resolve derives linear measurements and a body-shape label from the
// keypoints and an optional width hint. It is total: any combination of
// missing or low-confidence landmarks degrades to nil fields and an
// "Unknown" shape, never an error.
func Resolve(kp Keypoints, hint *BodyWidthHint) Geometry {
	geo := Geometry{BodyShape: ShapeUnknown}

	for _, strategy := range torsoStrategies {
		if length, ok := strategy(kp); ok {
			geo.TorsoLengthPx = &length
			break
		}
	}

	shoulder := resolveWidth(hintShoulder(hint), kp.LeftShoulder, kp.RightShoulder)
	waist := resolveWidth(hintWaist(hint), kp.LeftHip, kp.RightHip)

	if shoulder != nil && *shoulder >= 0 && waist != nil && *waist > 0 {
		ratio := *shoulder / *waist
		formatted := fmt.Sprintf("%.2f", ratio)
		geo.Ratio = &formatted
		geo.BodyShape = classifyShape(ratio)
	}

	geo.ShoulderPx = dropNegative(shoulder)
	geo.WaistPx = dropNegative(waist)
	return geo
}

// resolveWidth applies the trust-the-caller policy: a finite hint wins
// outright; otherwise the width is the distance between the two landmarks
// when both are usable.
func resolveWidth(hint *float64, left, right *Landmark) *float64 {
	if hint != nil && !math.IsNaN(*hint) && !math.IsInf(*hint, 0) {
		value := *hint
		return &value
	}
	if !left.Usable() || !right.Usable() {
		return nil
	}
	if width, ok := pixelDistance(left, right); ok {
		return &width
	}
	return nil
}

func hintShoulder(hint *BodyWidthHint) *float64 {
	if hint == nil {
		return nil
	}
	return hint.ShoulderPx
}

func hintWaist(hint *BodyWidthHint) *float64 {
	if hint == nil {
		return nil
	}
	if hint.WaistPx != nil {
		return hint.WaistPx
	}
	return hint.HipPx
}

func classifyShape(ratio float64) string {
	switch {
	case ratio > broadShoulderRatio:
		return ShapeInvertedTriangle
	case ratio < narrowShoulderRatio:
		return ShapePear
	default:
		return ShapeBalanced
	}
}

// dropNegative nulls out negative widths so emitted numbers stay
// non-negative. Negative hints still drive the ratio guard before this runs.
func dropNegative(v *float64) *float64 {
	if v != nil && *v < 0 {
		return nil
	}
	return v
}
