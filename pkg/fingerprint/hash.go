package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"stayguard/internal/models"
)

// SchemaVersion tags collected fingerprints so stored hashes can be
// invalidated when the stable-input set changes.
const SchemaVersion = 2

// Hasher turns the stable-input string into a hex digest. The default uses
// a cryptographic digest; Fallback is the deterministic non-cryptographic
// alternative for surfaces without one. Both are pure: identical input,
// identical output, every call.
type Hasher func(input string) string

// SHA256Hex is the default hasher.
func SHA256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// FallbackHash is FNV-1a over the same input, stretched to 64 hex chars by
// hashing rotations so the output length matches the default.
func FallbackHash(input string) string {
	var b strings.Builder
	for i := 0; i < 4; i++ {
		h := fnv.New64a()
		_, _ = h.Write([]byte(input))
		_, _ = h.Write([]byte{byte(i)})
		b.WriteString(fmt.Sprintf("%016x", h.Sum64()))
	}
	return b.String()
}

// StableInput concatenates only the device-invariant component fields.
// Volatile signals (connection type, battery) are deliberately excluded so
// the hash does not churn between visits on the same device.
func StableInput(c *models.Components) string {
	var parts []string

	parts = append(parts, c.CanvasHash, c.WebGLHash, c.AudioHash)

	fonts := make([]string, len(c.Fonts))
	copy(fonts, c.Fonts)
	sort.Strings(fonts)
	parts = append(parts, strings.Join(fonts, ","))

	if c.Hardware != nil {
		parts = append(parts,
			fmt.Sprintf("cores:%d", c.Hardware.CPUCores),
			"platform:"+c.Hardware.Platform,
			fmt.Sprintf("concurrency:%d", c.Hardware.Concurrency),
		)
	}
	if c.Screen != nil {
		parts = append(parts,
			fmt.Sprintf("depth:%d", c.Screen.ColorDepth),
			fmt.Sprintf("ratio:%.2f", c.Screen.PixelRatio),
		)
	}
	if c.Timezone != nil {
		parts = append(parts, "tz:"+c.Timezone.Name, fmt.Sprintf("off:%d", c.Timezone.Offset))
	}
	if c.Math != nil {
		parts = append(parts,
			fmt.Sprintf("tan:%.15g", c.Math.Tan),
			fmt.Sprintf("sinh:%.15g", c.Math.Sinh),
			fmt.Sprintf("expm1:%.15g", c.Math.Expm1),
		)
	}
	if c.Browser != nil {
		parts = append(parts, "lang:"+c.Browser.Language)
	}

	return strings.Join(parts, "|")
}

// IDFromHash derives the canonical client-origin visitor id from a
// fingerprint hash prefix.
func IDFromHash(hash string) string {
	if len(hash) < 16 {
		return "fp_" + hash
	}
	return "fp_" + hash[:16]
}
