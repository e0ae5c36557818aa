package bodymetrics

import "math"

// usableVisibility is the minimum detection confidence for a landmark to
// participate in measurements. Landmarks without a reported visibility are
// trusted as-is.
const usableVisibility = 0.5

// Landmark is a single detected anatomical point in the source image's pixel
// coordinate frame. Z and Visibility are optional; a nil pointer means the
// estimator did not report the value.
type Landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// Usable reports whether the landmark may participate in measurements:
// it must be present and, when a visibility is reported, meet the threshold.
func (l *Landmark) Usable() bool {
	if l == nil {
		return false
	}
	return l.Visibility == nil || *l.Visibility >= usableVisibility
}

// Keypoints is the closed set of named landmarks the engine consults.
// Upstream estimators emit a larger map (full-body pose); decoding into this
// fixed record drops everything else, so lower-body points are never touched.
// The face points are part of the input contract (skin sampling happens
// upstream around them) but take no part in geometry.
type Keypoints struct {
	Nose          *Landmark `json:"nose,omitempty"`
	LeftEye       *Landmark `json:"left_eye,omitempty"`
	RightEye      *Landmark `json:"right_eye,omitempty"`
	LeftShoulder  *Landmark `json:"left_shoulder,omitempty"`
	RightShoulder *Landmark `json:"right_shoulder,omitempty"`
	LeftHip       *Landmark `json:"left_hip,omitempty"`
	RightHip      *Landmark `json:"right_hip,omitempty"`
}

// pixelDistance is the Euclidean distance between two landmarks, rounded to
// the nearest whole pixel. It requires presence only; visibility filtering is
// the caller's job. The second return is false when either point is absent.
func pixelDistance(a, b *Landmark) (float64, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Round(math.Sqrt(dx*dx + dy*dy)), true
}

// midpoint is the coordinate-wise mean of two present landmarks.
func midpoint(a, b *Landmark) *Landmark {
	if a == nil || b == nil {
		return nil
	}
	return &Landmark{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
