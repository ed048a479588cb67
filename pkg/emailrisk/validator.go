// Package emailrisk scores an email address for disposability and fraud
// patterns. Scoring is pure: the rule tables in tables.go are the only
// inputs besides the address itself.
package emailrisk

import (
	"regexp"
	"strings"
)

var formatRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Result is the full validation outcome for one address.
type Result struct {
	IsValid     bool     `json:"is_valid"`
	RiskLevel   string   `json:"risk_level"`
	RiskScore   int      `json:"risk_score"`
	Flags       []string `json:"flags"`
	Domain      string   `json:"domain"`
	Username    string   `json:"username"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Validate scores an email address. An address that fails the format check
// short-circuits to the maximum score; no further checks run.
func Validate(email string) Result {
	email = strings.TrimSpace(strings.ToLower(email))

	if !formatRe.MatchString(email) {
		return Result{
			IsValid:   false,
			RiskLevel: "critical",
			RiskScore: 100,
			Flags:     []string{FlagInvalidFormat},
		}
	}

	at := strings.LastIndex(email, "@")
	username := email[:at]
	domain := email[at+1:]

	result := Result{
		IsValid:  true,
		Domain:   domain,
		Username: username,
	}

	var flags []string

	if isDisposable(domain) {
		flags = append(flags, FlagDisposableDomain)
	}

	if tld := lastLabel(domain); tld != "" {
		if _, ok := highRiskTLDs[tld]; ok {
			flags = append(flags, FlagHighRiskTLD)
		}
	}

	for _, p := range usernamePatterns {
		if p.re.MatchString(username) {
			flags = append(flags, p.flag)
		}
	}

	if isSubdomainAddress(domain) {
		flags = append(flags, FlagSubdomainEmail)
	}

	if len(username) < 3 {
		flags = append(flags, FlagShortUsername)
	} else if len(username) > 64 {
		flags = append(flags, FlagLongUsername)
	}

	result.Flags = dedupe(flags)
	result.Suggestions = suggestions(username, domain)

	score := 0
	for _, f := range result.Flags {
		score += flagScores[f]
	}
	if score > 100 {
		score = 100
	}
	result.RiskScore = score

	switch {
	case score >= 70:
		result.RiskLevel = "critical"
	case score >= 50:
		result.RiskLevel = "high"
	case score >= 30:
		result.RiskLevel = "medium"
	default:
		result.RiskLevel = "low"
	}

	return result
}

func isDisposable(domain string) bool {
	for _, d := range disposableDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// isSubdomainAddress reports whether the domain has more than two labels,
// not counting ccSLD constructions like example.co.uk.
func isSubdomainAddress(domain string) bool {
	labels := strings.Split(domain, ".")
	if len(labels) <= 2 {
		return false
	}
	// example.co.uk: three labels where the middle is a ccSLD and the TLD is
	// a two-letter country code.
	if len(labels) == 3 && len(labels[2]) == 2 {
		if _, ok := ccSLDs[labels[1]]; ok {
			return false
		}
	}
	return true
}

// suggestions returns corrected addresses for likely provider typos.
func suggestions(username, domain string) []string {
	if fixed, ok := knownTypos[domain]; ok {
		return []string{username + "@" + fixed}
	}

	for _, provider := range commonProviders {
		if domain == provider {
			return nil
		}
	}

	for _, provider := range commonProviders {
		if editDistanceOne(domain, provider) {
			return []string{username + "@" + provider}
		}
	}
	return nil
}

// editDistanceOne reports whether a and b differ by a single insertion,
// deletion, or substitution.
func editDistanceOne(a, b string) bool {
	la, lb := len(a), len(b)
	if la == lb {
		diff := 0
		for i := 0; i < la; i++ {
			if a[i] != b[i] {
				diff++
				if diff > 1 {
					return false
				}
			}
		}
		return diff == 1
	}

	if la > lb {
		a, b = b, a
		la, lb = lb, la
	}
	if lb-la != 1 {
		return false
	}

	// a is one shorter than b: allow one skipped character in b.
	i, j, skipped := 0, 0, false
	for i < la && j < lb {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		if skipped {
			return false
		}
		skipped = true
		j++
	}
	return true
}

func lastLabel(domain string) string {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 || idx == len(domain)-1 {
		return ""
	}
	return domain[idx+1:]
}

func dedupe(flags []string) []string {
	seen := make(map[string]struct{}, len(flags))
	var out []string
	for _, f := range flags {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
