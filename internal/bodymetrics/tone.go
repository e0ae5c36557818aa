package bodymetrics

// ToneUnknown is the default skin-tone category when the upstream sample is
// missing or carried no classification. The recognized upstream categories
// are "Light", "Medium", "Medium-Dark" and "Dark", but the normalizer does
// not validate against them; unrecognized strings pass through unchanged.
const ToneUnknown = "Unknown"

// SkinSample is the already-classified skin color supplied by the upstream
// estimator. Classification from RGB happens upstream; this engine only
// guarantees null safety. Error preserves any upstream sampling failure
// message for the raw debug payload.
type SkinSample struct {
	Hex          *string `json:"hex"`
	RGB          []int   `json:"rgb"`
	ToneCategory string  `json:"tone_category,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Tone is the normalized skin-tone output.
type Tone struct {
	Category string
	Hex      *string
}

// NormalizeTone maps an optional upstream sample to a tone category and
// canonical hex, defaulting to "Unknown"/nil when data is missing.
func NormalizeTone(sample *SkinSample) Tone {
	tone := Tone{Category: ToneUnknown}
	if sample == nil {
		return tone
	}
	if sample.ToneCategory != "" {
		tone.Category = sample.ToneCategory
	}
	tone.Hex = sample.Hex
	return tone
}
