package netrisk

// Risk factor names.
const (
	FactorPrivateIP       = "private_ip"
	FactorLookupFailed    = "lookup_failed"
	FactorProxy           = "proxy_detected"
	FactorHosting         = "datacenter_ip"
	FactorVPN             = "vpn_detected"
	FactorTor             = "tor_exit_node"
	FactorHighRiskCountry = "high_risk_country"
	FactorIncompleteGeo   = "incomplete_geo_data"
)

// factorScores is additive and capped at 100.
var factorScores = map[string]int{
	FactorProxy:           30,
	FactorHosting:         25,
	FactorVPN:             20,
	FactorTor:             40,
	FactorHighRiskCountry: 15,
	FactorIncompleteGeo:   10,
}

// vpnProviders are substrings matched case-insensitively against the
// ISP/org/ASN text. Commercial VPNs plus the low-cost hosting providers that
// resell VPN endpoints.
var vpnProviders = []string{
	"nordvpn",
	"expressvpn",
	"surfshark",
	"private internet access",
	"protonvpn",
	"mullvad",
	"cyberghost",
	"ipvanish",
	"windscribe",
	"tunnelbear",
	"hide.me",
	"vyprvpn",
	"purevpn",
	"hotspot shield",
	"m247",
	"datacamp",
	"packethub",
	"cdn77",
	"creanova",
	"clouvider",
	"hydra communications",
}

// torPatterns match the naming conventions of known exit-node operators.
var torPatterns = []string{
	"tor exit",
	"tor-exit",
	"torservers",
	"tor network",
	"onion router",
	"foundation for applied privacy",
	"emerald onion",
	"quintex alliance",
}

// hostingKeywords mark generic datacenter/hosting infrastructure.
var hostingKeywords = []string{
	"hosting",
	"datacenter",
	"data center",
	"server",
	"cloud",
	"colo",
	"vps",
	"digitalocean",
	"amazon",
	"aws",
	"google cloud",
	"microsoft azure",
	"hetzner",
	"ovh",
	"linode",
	"vultr",
	"contabo",
	"scaleway",
	"leaseweb",
}

// highRiskCountries is keyed by ISO 3166-1 alpha-2 code.
var highRiskCountries = map[string]struct{}{
	"NG": {},
	"GH": {},
	"PK": {},
	"BD": {},
	"VN": {},
	"ID": {},
	"RO": {},
	"UA": {},
	"RU": {},
	"CN": {},
}
