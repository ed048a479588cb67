package fingerprint

import "stayguard/internal/models"

// Category confidence weights. The full set sums to 100; fonts earn half
// credit when only a handful of candidates were detected.
var confidenceWeights = map[string]int{
	"canvas":     15,
	"webgl":      15,
	"audio":      12,
	"fonts":      10,
	"hardware":   10,
	"screen":     8,
	"timezone":   8,
	"browser":    7,
	"features":   5,
	"connection": 5,
	"math":       5,
}

// Confidence scores how trustworthy a component set is, 0-100, based on
// which signal categories are present and valid. Adding a category never
// lowers the score.
func Confidence(c *models.Components) int {
	if c == nil {
		return 0
	}

	score := 0

	if validRenderHash(c.CanvasHash) {
		score += confidenceWeights["canvas"]
	}
	if validRenderHash(c.WebGLHash) {
		score += confidenceWeights["webgl"]
	}
	if validRenderHash(c.AudioHash) {
		score += confidenceWeights["audio"]
	}

	switch n := len(c.Fonts); {
	case n > 5:
		score += confidenceWeights["fonts"]
	case n >= 1:
		score += confidenceWeights["fonts"] / 2
	}

	if c.Hardware != nil && c.Hardware.CPUCores > 0 {
		score += confidenceWeights["hardware"]
	}
	if c.Screen != nil && c.Screen.Width > 0 && c.Screen.Height > 0 {
		score += confidenceWeights["screen"]
	}
	if c.Timezone != nil && c.Timezone.Name != "" {
		score += confidenceWeights["timezone"]
	}
	if c.Browser != nil && c.Browser.UserAgent != "" {
		score += confidenceWeights["browser"]
	}
	if len(c.Features) > 0 {
		score += confidenceWeights["features"]
	}
	if c.Connection != nil {
		score += confidenceWeights["connection"]
	}
	if c.Math != nil {
		score += confidenceWeights["math"]
	}

	if score > 100 {
		score = 100
	}
	return score
}

func validRenderHash(h string) bool {
	return h != "" && h != "error"
}
