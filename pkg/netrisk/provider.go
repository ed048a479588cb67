package netrisk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GeoInfo is the raw answer from the geolocation provider.
type GeoInfo struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	ASN         string  `json:"as"`
	Mobile      bool    `json:"mobile"`
	Proxy       bool    `json:"proxy"`
	Hosting     bool    `json:"hosting"`
}

// GeoProvider resolves an IP to geolocation and network ownership data.
// Implementations must treat timeouts and non-2xx answers as ordinary
// errors; the resolver degrades rather than failing the pipeline.
type GeoProvider interface {
	Lookup(ctx context.Context, ip string) (*GeoInfo, error)
}

// HTTPProvider queries an ip-api.com style JSON endpoint.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

const lookupFields = "status,message,country,countryCode,regionName,city,lat,lon,timezone,isp,org,as,mobile,proxy,hosting"

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (*GeoInfo, error) {
	url := fmt.Sprintf("%s/%s?fields=%s", p.baseURL, ip, lookupFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build geo request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		GeoInfo
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode geo response: %w", err)
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("geo lookup: provider said %q", payload.Message)
	}

	info := payload.GeoInfo
	return &info, nil
}
