package netrisk

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	info *GeoInfo
	err  error
}

func (f *fakeProvider) Lookup(_ context.Context, _ string) (*GeoInfo, error) {
	return f.info, f.err
}

func TestLookup_PrivateIP(t *testing.T) {
	r := NewResolver(&fakeProvider{err: errors.New("provider must not be called")})

	for _, ip := range []string{"10.0.0.5", "192.168.1.10", "127.0.0.1", "169.254.0.9"} {
		result := r.Lookup(context.Background(), ip)

		if result.RiskScore != 0 {
			t.Errorf("Lookup(%s): expected score 0, got %d", ip, result.RiskScore)
		}
		if !hasFactor(result.RiskFactors, FactorPrivateIP) {
			t.Errorf("Lookup(%s): expected %s factor, got %v", ip, FactorPrivateIP, result.RiskFactors)
		}
		if result.Success {
			t.Errorf("Lookup(%s): private IP must not report success", ip)
		}
	}
}

func TestLookup_ProviderFailure(t *testing.T) {
	r := NewResolver(&fakeProvider{err: errors.New("timeout")})

	result := r.Lookup(context.Background(), "203.0.113.7")

	if result.Success {
		t.Error("Expected degraded result on provider failure")
	}
	if result.RiskScore != 0 {
		t.Errorf("Degraded result must carry zero risk, got %d", result.RiskScore)
	}
	if !hasFactor(result.RiskFactors, FactorLookupFailed) {
		t.Errorf("Expected %s factor, got %v", FactorLookupFailed, result.RiskFactors)
	}
}

func TestLookup_ResidentialISP(t *testing.T) {
	r := NewResolver(&fakeProvider{info: &GeoInfo{
		Country:     "United States",
		CountryCode: "US",
		Region:      "California",
		City:        "San Diego",
		Timezone:    "America/Los_Angeles",
		ISP:         "Cox Communications",
		Org:         "Cox Communications Inc",
		ASN:         "AS22773 Cox Communications Inc.",
	}})

	result := r.Lookup(context.Background(), "203.0.113.7")

	if !result.Success {
		t.Error("Expected success for clean lookup")
	}
	if result.RiskScore != 0 {
		t.Errorf("Residential ISP should score 0, got %d (%v)", result.RiskScore, result.RiskFactors)
	}
	if result.VPN || result.Tor || result.Hosting {
		t.Errorf("Unexpected network classification: vpn=%v tor=%v hosting=%v", result.VPN, result.Tor, result.Hosting)
	}
}

func TestLookup_VPNProvider(t *testing.T) {
	r := NewResolver(&fakeProvider{info: &GeoInfo{
		CountryCode: "NL",
		Region:      "North Holland",
		City:        "Amsterdam",
		ISP:         "M247 Europe SRL",
		Org:         "NordVPN",
		ASN:         "AS9009 M247 Ltd",
	}})

	result := r.Lookup(context.Background(), "203.0.113.8")

	if !result.VPN {
		t.Error("Expected VPN detection for known provider")
	}
	if !hasFactor(result.RiskFactors, FactorVPN) {
		t.Errorf("Expected %s factor, got %v", FactorVPN, result.RiskFactors)
	}
	if result.RiskScore < factorScores[FactorVPN] {
		t.Errorf("Expected score >= %d, got %d", factorScores[FactorVPN], result.RiskScore)
	}
}

func TestLookup_TorExit(t *testing.T) {
	r := NewResolver(&fakeProvider{info: &GeoInfo{
		CountryCode: "DE",
		Region:      "Hesse",
		City:        "Frankfurt",
		ISP:         "Tor-Exit Relay",
		Org:         "Emerald Onion",
	}})

	result := r.Lookup(context.Background(), "203.0.113.9")

	if !result.Tor {
		t.Error("Expected Tor detection")
	}
	if result.RiskScore < factorScores[FactorTor] {
		t.Errorf("Expected score >= %d, got %d", factorScores[FactorTor], result.RiskScore)
	}
}

func TestLookup_ScoreTable(t *testing.T) {
	// Proxy + hosting + high-risk country + missing city data, additive.
	r := NewResolver(&fakeProvider{info: &GeoInfo{
		CountryCode: "RU",
		ISP:         "Selectel hosting",
		Proxy:       true,
		Hosting:     true,
	}})

	result := r.Lookup(context.Background(), "203.0.113.10")

	want := factorScores[FactorProxy] + factorScores[FactorHosting] +
		factorScores[FactorHighRiskCountry] + factorScores[FactorIncompleteGeo]
	if result.RiskScore != want {
		t.Errorf("Expected additive score %d, got %d (%v)", want, result.RiskScore, result.RiskFactors)
	}
	if result.RiskScore > 100 {
		t.Errorf("Score must be capped at 100, got %d", result.RiskScore)
	}
}

func TestExtractIP_HeaderPrecedence(t *testing.T) {
	headers := map[string]string{
		"CF-Connecting-IP": "198.51.100.4",
		"X-Forwarded-For":  "203.0.113.55, 10.0.0.1",
	}
	get := func(name string) string { return headers[name] }

	if ip := ExtractIP(get, "192.0.2.1:5000"); ip != "198.51.100.4" {
		t.Errorf("Expected CDN header to win, got %s", ip)
	}

	delete(headers, "CF-Connecting-IP")
	if ip := ExtractIP(get, "192.0.2.1:5000"); ip != "203.0.113.55" {
		t.Errorf("Expected first public XFF entry, got %s", ip)
	}
}

func TestExtractIP_SkipsPrivateChain(t *testing.T) {
	headers := map[string]string{
		"X-Forwarded-For": "10.1.2.3, 172.16.0.4, 198.51.100.9",
	}
	get := func(name string) string { return headers[name] }

	if ip := ExtractIP(get, "192.0.2.1:5000"); ip != "198.51.100.9" {
		t.Errorf("Expected private entries skipped, got %s", ip)
	}
}

func TestExtractIP_FallbackRemoteAddr(t *testing.T) {
	get := func(string) string { return "" }

	if ip := ExtractIP(get, "203.0.113.77:61002"); ip != "203.0.113.77" {
		t.Errorf("Expected remote addr host, got %s", ip)
	}
}

func TestSubnet24(t *testing.T) {
	if s := Subnet24("203.0.113.77"); s != "203.0.113.0" {
		t.Errorf("Subnet24 = %s, want 203.0.113.0", s)
	}
	if s := Subnet24("::1"); s != "::1" {
		t.Errorf("Non-IPv4 input should pass through, got %s", s)
	}
}

func hasFactor(factors []string, factor string) bool {
	for _, f := range factors {
		if f == factor {
			return true
		}
	}
	return false
}
