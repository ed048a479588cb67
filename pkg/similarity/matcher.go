// Package similarity scores how closely an incoming visitor resembles a
// historical visit record across several imperfect signals. Exact key
// matching lives in the identity resolver; this is the weighted fallback.
package similarity

import (
	"strings"

	"stayguard/internal/models"
	"stayguard/pkg/netrisk"
)

// Weights for each compared signal. The defaults sum to 100, so the raw sum
// is already a 0-100 similarity score.
type Weights struct {
	FingerprintHash int
	UserAgentExact  int
	UserAgentFamily int
	IPExact         int
	IPSubnet        int
	Country         int
	Timezone        int
	DeviceType      int
	Browser         int
}

var DefaultWeights = Weights{
	FingerprintHash: 40,
	UserAgentExact:  20,
	UserAgentFamily: 5,
	IPExact:         15,
	IPSubnet:        8,
	Country:         5,
	Timezone:        10,
	DeviceType:      5,
	Browser:         5,
}

// Probe is the incoming visitor's comparable signal set.
type Probe struct {
	FingerprintHash string
	IP              string
	UserAgent       string
	Country         string
	Timezone        string
	DeviceType      string
	Browser         string
}

// Matcher computes weighted similarity between a probe and visit records.
type Matcher struct {
	weights Weights
}

func NewMatcher(weights Weights) *Matcher {
	return &Matcher{weights: weights}
}

// Score returns the 0-100 similarity between the probe and one record.
// Signals absent on either side simply contribute nothing.
func (m *Matcher) Score(probe Probe, rec models.VisitRecord) int {
	score := 0

	if probe.FingerprintHash != "" && probe.FingerprintHash == rec.FingerprintHash {
		score += m.weights.FingerprintHash
	}

	switch {
	case probe.UserAgent != "" && probe.UserAgent == rec.UserAgent:
		score += m.weights.UserAgentExact
	case browserFamily(probe.UserAgent) != "" && browserFamily(probe.UserAgent) == browserFamily(rec.UserAgent):
		score += m.weights.UserAgentFamily
	}

	switch {
	case probe.IP != "" && probe.IP == rec.IP:
		score += m.weights.IPExact
	case probe.IP != "" && rec.IP != "" && netrisk.Subnet24(probe.IP) == netrisk.Subnet24(rec.IP):
		score += m.weights.IPSubnet
	}

	if probe.Country != "" && strings.EqualFold(probe.Country, rec.Country) {
		score += m.weights.Country
	}
	if probe.Timezone != "" && probe.Timezone == rec.Timezone {
		score += m.weights.Timezone
	}
	if probe.DeviceType != "" && strings.EqualFold(probe.DeviceType, rec.DeviceType) {
		score += m.weights.DeviceType
	}
	if probe.Browser != "" && strings.EqualFold(probe.Browser, rec.Browser) {
		score += m.weights.Browser
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Best returns the highest-scoring record and its similarity, or -1 when the
// candidate set is empty.
func (m *Matcher) Best(probe Probe, records []models.VisitRecord) (models.VisitRecord, int) {
	best := -1
	var bestRec models.VisitRecord
	for _, rec := range records {
		if s := m.Score(probe, rec); s > best {
			best = s
			bestRec = rec
		}
	}
	return bestRec, best
}

// browserFamily extracts the browser name from a user-agent string, ignoring
// versions. Order matters: Chrome UAs also contain "Safari".
func browserFamily(ua string) string {
	ua = strings.ToLower(ua)
	for _, family := range []string{"edg", "opr", "firefox", "chrome", "safari"} {
		if strings.Contains(ua, family) {
			switch family {
			case "edg":
				return "edge"
			case "opr":
				return "opera"
			default:
				return family
			}
		}
	}
	return ""
}
