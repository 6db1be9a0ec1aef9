package messages

import (
	"strings"
	"time"
)

// clearWaterMarkers are matched case-insensitively against the label.
// The Thai phrases mean "clear water" and "too clear".
var clearWaterMarkers = []string{"clear", "น้ำใส", "ใสเกิน"}

// WaterColorSample is the latest output of the water-color classifier,
// e.g. Label "clear (92%)".
type WaterColorSample struct {
	Label      string
	ObservedAt time.Time
	SourcePath string
}

// IsClear reports whether the sample says the water is too clear.
func (s WaterColorSample) IsClear() bool { return IndicatesClearWater(s.Label) }

// IndicatesClearWater looks only at the first line of the label.
func IndicatesClearWater(label string) bool {
	first, _, _ := strings.Cut(label, "\n")
	first = strings.ToLower(strings.TrimSpace(first))
	if first == "" {
		return false
	}
	for _, m := range clearWaterMarkers {
		if strings.Contains(first, m) {
			return true
		}
	}
	return false
}
