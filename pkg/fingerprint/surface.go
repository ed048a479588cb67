package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"stayguard/internal/models"
)

// Surface abstracts the browsing context the collector probes. The real
// implementation is backed by an actual rendering surface in the client
// agent; StubSurface stands in for server-side and headless test execution
// so the scoring logic never needs a browser.
//
// Every probe returns an error instead of panicking when the underlying
// capability is missing; the collector records the category as unavailable
// and moves on.
type Surface interface {
	Screen() (*models.ScreenInfo, error)
	Hardware() (*models.HardwareInfo, error)
	Browser() (*models.BrowserInfo, error)
	Timezone() (*models.TimezoneInfo, error)

	// RenderCanvas draws the fixed 2D scene and returns a hash of the pixels.
	RenderCanvas() (string, error)
	// RenderWebGL draws the fixed GPU scene and returns a hash of the output.
	RenderWebGL() (string, error)
	// RenderAudio performs the offline oscillator render and hashes the
	// samples. This is the only asynchronous probe, hence the context.
	RenderAudio(ctx context.Context) (string, error)

	// MeasureFonts reports which candidates render at a different width than
	// the baseline families.
	MeasureFonts(candidates []string) ([]string, error)

	Features() (map[string]bool, error)
	Connection() (*models.ConnectionInfo, error)
	MathQuirks() (*models.MathInfo, error)
}

// FontCandidates is the fixed list measured against the baseline families.
var FontCandidates = []string{
	"Arial Black",
	"Calibri",
	"Cambria",
	"Candara",
	"Comic Sans MS",
	"Consolas",
	"Constantia",
	"Franklin Gothic",
	"Futura",
	"Garamond",
	"Geneva",
	"Georgia",
	"Gill Sans",
	"Helvetica Neue",
	"Impact",
	"Lucida Console",
	"Menlo",
	"Monaco",
	"Optima",
	"Palatino",
	"Rockwell",
	"Segoe UI",
	"Tahoma",
	"Trebuchet MS",
	"Verdana",
}

// BaselineFonts are the families candidate widths are compared against.
var BaselineFonts = []string{"monospace", "sans-serif", "serif"}

// StubSurface is a deterministic Surface for tests and headless runs. All
// render probes hash a fixed scene description, so repeated collections
// produce identical output.
type StubSurface struct {
	// FailCategories lists probes that should report unavailability, for
	// exercising graceful degradation.
	FailCategories map[string]bool
}

var errUnavailable = fmt.Errorf("capability unavailable")

func (s *StubSurface) failing(category string) bool {
	return s.FailCategories != nil && s.FailCategories[category]
}

func (s *StubSurface) Screen() (*models.ScreenInfo, error) {
	if s.failing("screen") {
		return nil, errUnavailable
	}
	return &models.ScreenInfo{Width: 1920, Height: 1080, ColorDepth: 24, PixelRatio: 2}, nil
}

func (s *StubSurface) Hardware() (*models.HardwareInfo, error) {
	if s.failing("hardware") {
		return nil, errUnavailable
	}
	return &models.HardwareInfo{CPUCores: 8, DeviceMemory: 16, Concurrency: 8, Platform: "MacIntel"}, nil
}

func (s *StubSurface) Browser() (*models.BrowserInfo, error) {
	if s.failing("browser") {
		return nil, errUnavailable
	}
	return &models.BrowserInfo{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		Language:  "en-US",
		Languages: []string{"en-US", "en"},
		Vendor:    "Google Inc.",
	}, nil
}

func (s *StubSurface) Timezone() (*models.TimezoneInfo, error) {
	if s.failing("timezone") {
		return nil, errUnavailable
	}
	return &models.TimezoneInfo{Name: "America/New_York", Offset: -300}, nil
}

func (s *StubSurface) RenderCanvas() (string, error) {
	if s.failing("canvas") {
		return "", errUnavailable
	}
	return fixedSceneHash("canvas-2d:StayGuard,1.0:rect(10,10,120,40):arc(60,60,25)"), nil
}

func (s *StubSurface) RenderWebGL() (string, error) {
	if s.failing("webgl") {
		return "", errUnavailable
	}
	return fixedSceneHash("webgl:triangle-strip:rgba(0.2,0.4,0.6,1.0):viewport(256,128)"), nil
}

func (s *StubSurface) RenderAudio(ctx context.Context) (string, error) {
	if s.failing("audio") {
		return "", errUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fixedSceneHash("audio:oscillator(triangle,10000hz):compressor(-50,40,12,0,0.25)"), nil
}

func (s *StubSurface) MeasureFonts(candidates []string) ([]string, error) {
	if s.failing("fonts") {
		return nil, errUnavailable
	}
	// A plausible desktop subset, stable across calls.
	detected := make([]string, 0, 8)
	for _, f := range candidates {
		switch f {
		case "Arial Black", "Comic Sans MS", "Georgia", "Helvetica Neue", "Impact", "Menlo", "Monaco", "Verdana":
			detected = append(detected, f)
		}
	}
	return detected, nil
}

func (s *StubSurface) Features() (map[string]bool, error) {
	if s.failing("features") {
		return nil, errUnavailable
	}
	return map[string]bool{
		"localStorage":   true,
		"sessionStorage": true,
		"indexedDB":      true,
		"webWorkers":     true,
		"touchSupport":   false,
		"cookiesEnabled": true,
		"serviceWorkers": true,
	}, nil
}

func (s *StubSurface) Connection() (*models.ConnectionInfo, error) {
	if s.failing("connection") {
		return nil, errUnavailable
	}
	return &models.ConnectionInfo{EffectiveType: "4g", Downlink: 10, RTT: 50}, nil
}

func (s *StubSurface) MathQuirks() (*models.MathInfo, error) {
	if s.failing("math") {
		return nil, errUnavailable
	}
	return &models.MathInfo{
		Tan:   -1.4214488238747245,
		Sinh:  1.1752011936438014,
		Expm1: 1.718281828459045,
	}, nil
}

func fixedSceneHash(scene string) string {
	sum := sha256.Sum256([]byte(scene))
	return hex.EncodeToString(sum[:16])
}
