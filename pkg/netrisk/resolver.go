// Package netrisk resolves a client IP to geolocation plus VPN, proxy, Tor,
// and datacenter risk. Provider failure is a degraded zero-risk result, not
// an error: network risk must never abort the booking pipeline.
package netrisk

import (
	"context"
	"strings"
)

// Result is the network risk outcome for one IP.
type Result struct {
	Success     bool     `json:"success"`
	IP          string   `json:"ip"`
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Timezone    string   `json:"timezone"`
	ISP         string   `json:"isp"`
	Org         string   `json:"org"`
	ASN         string   `json:"asn"`
	Mobile      bool     `json:"mobile"`
	Proxy       bool     `json:"proxy"`
	Hosting     bool     `json:"hosting"`
	VPN         bool     `json:"vpn"`
	Tor         bool     `json:"tor"`
	RiskScore   int      `json:"risk_score"`
	RiskFactors []string `json:"risk_factors"`
}

// Resolver scores network risk through a pluggable geo provider.
type Resolver struct {
	provider GeoProvider
}

func NewResolver(provider GeoProvider) *Resolver {
	return &Resolver{provider: provider}
}

// Lookup resolves and scores one IP. Private addresses short-circuit to a
// zero-risk result without touching the provider.
func (r *Resolver) Lookup(ctx context.Context, ip string) Result {
	if IsPrivateAddr(ip) {
		return Result{
			IP:          ip,
			RiskScore:   0,
			RiskFactors: []string{FactorPrivateIP},
		}
	}

	info, err := r.provider.Lookup(ctx, ip)
	if err != nil {
		return Result{
			IP:          ip,
			RiskScore:   0,
			RiskFactors: []string{FactorLookupFailed},
		}
	}

	result := Result{
		Success:     true,
		IP:          ip,
		Country:     info.Country,
		CountryCode: info.CountryCode,
		Region:      info.Region,
		City:        info.City,
		Lat:         info.Lat,
		Lon:         info.Lon,
		Timezone:    info.Timezone,
		ISP:         info.ISP,
		Org:         info.Org,
		ASN:         info.ASN,
		Mobile:      info.Mobile,
		Proxy:       info.Proxy,
		Hosting:     info.Hosting,
	}

	network := strings.ToLower(info.ISP + " " + info.Org + " " + info.ASN)
	result.VPN = matchesAny(network, vpnProviders)
	result.Tor = matchesAny(network, torPatterns)
	if !result.Hosting {
		result.Hosting = matchesAny(network, hostingKeywords)
	}

	var factors []string
	if result.Proxy {
		factors = append(factors, FactorProxy)
	}
	if result.Hosting {
		factors = append(factors, FactorHosting)
	}
	if result.VPN {
		factors = append(factors, FactorVPN)
	}
	if result.Tor {
		factors = append(factors, FactorTor)
	}
	if _, ok := highRiskCountries[info.CountryCode]; ok {
		factors = append(factors, FactorHighRiskCountry)
	}
	if info.City == "" || info.Region == "" {
		factors = append(factors, FactorIncompleteGeo)
	}

	score := 0
	for _, f := range factors {
		score += factorScores[f]
	}
	if score > 100 {
		score = 100
	}

	result.RiskScore = score
	result.RiskFactors = factors
	return result
}

func matchesAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
