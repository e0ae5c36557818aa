package bodymetrics

import "encoding/json"

// RawPayloads carries the upstream debug payloads forwarded untouched for
// downstream inspection.
type RawPayloads struct {
	SkinColor *SkinSample    `json:"skin_color"`
	BodyWidth *BodyWidthHint `json:"body_width"`
}

// MeasurementResult is the engine's single output record. Every numeric
// field is either a finite non-negative number or null, BodyShape is always
// one of the four labels, and the ratio is a two-decimal fixed string so the
// wire format stays stable for downstream consumers.
type MeasurementResult struct {
	SkinTone             string          `json:"skin_tone"`
	SkinHex              *string         `json:"skin_hex"`
	BodyShape            string          `json:"body_shape"`
	ShoulderPx           *float64        `json:"shoulder_px"`
	WaistPx              *float64        `json:"waist_px"`
	ShoulderToWaistRatio *string         `json:"shoulder_to_waist_ratio"`
	TorsoLengthPx        *float64        `json:"torso_length_px"`
	Raw                  RawPayloads     `json:"raw"`
	ModelAccuracy        json.RawMessage `json:"model_accuracy"`
}

// Assemble merges geometry and tone into the output record. It performs no
// logic beyond field selection; model accuracy is forwarded verbatim and
// defaults to an empty object when the estimator sent none.
func Assemble(geo Geometry, tone Tone, sample *SkinSample, hint *BodyWidthHint, modelAccuracy json.RawMessage) MeasurementResult {
	if len(modelAccuracy) == 0 {
		modelAccuracy = json.RawMessage(`{}`)
	}
	return MeasurementResult{
		SkinTone:             tone.Category,
		SkinHex:              tone.Hex,
		BodyShape:            geo.BodyShape,
		ShoulderPx:           geo.ShoulderPx,
		WaistPx:              geo.WaistPx,
		ShoulderToWaistRatio: geo.Ratio,
		TorsoLengthPx:        geo.TorsoLengthPx,
		Raw:                  RawPayloads{SkinColor: sample, BodyWidth: hint},
		ModelAccuracy:        modelAccuracy,
	}
}

// Analyze is the engine's sole entry point: one synchronous, pure call per
// analyzed image. It never fails; missing input only produces more null
// fields.
func Analyze(kp Keypoints, sample *SkinSample, hint *BodyWidthHint, modelAccuracy json.RawMessage) MeasurementResult {
	return Assemble(Resolve(kp, hint), NormalizeTone(sample), sample, hint, modelAccuracy)
}
