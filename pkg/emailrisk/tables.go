package emailrisk

import "regexp"

// Flag names emitted by the validator. Each suspicious-username pattern maps
// to exactly one flag; several may fire for the same address.
const (
	FlagInvalidFormat    = "invalid_format"
	FlagDisposableDomain = "disposable_domain"
	FlagHighRiskTLD      = "high_risk_tld"
	FlagLeadingDigits    = "leading_digits"
	FlagFakeUsername     = "fake_username_pattern"
	FlagExcessiveDigits  = "excessive_digits"
	FlagEmailAlias       = "email_alias"
	FlagRepeatedDots     = "repeated_dots"
	FlagInvalidChars     = "invalid_characters"
	FlagGenericUsername  = "generic_username"
	FlagSubdomainEmail   = "subdomain_email"
	FlagShortUsername    = "short_username"
	FlagLongUsername     = "long_username"
)

// flagScores is the per-flag point table. Values are empirical; the sum is
// clamped at 100.
var flagScores = map[string]int{
	FlagInvalidFormat:    50,
	FlagDisposableDomain: 40,
	FlagHighRiskTLD:      30,
	FlagFakeUsername:     35,
	FlagLeadingDigits:    20,
	FlagExcessiveDigits:  25,
	FlagEmailAlias:       10,
	FlagRepeatedDots:     20,
	FlagInvalidChars:     25,
	FlagGenericUsername:  20,
	FlagSubdomainEmail:   5,
	FlagShortUsername:    10,
	FlagLongUsername:     10,
}

// disposableDomains are providers of throwaway addresses. Matching is exact
// or by suffix, so "spam.mailinator.com" is caught too.
var disposableDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"guerrillamail.org",
	"10minutemail.com",
	"10minutemail.net",
	"tempmail.com",
	"temp-mail.org",
	"throwaway.email",
	"throwawaymail.com",
	"yopmail.com",
	"yopmail.net",
	"trashmail.com",
	"getnada.com",
	"maildrop.cc",
	"sharklasers.com",
	"dispostable.com",
	"fakeinbox.com",
	"mintemail.com",
	"mytemp.email",
	"mohmal.com",
	"emailondeck.com",
	"spamgourmet.com",
	"mailnesia.com",
	"tempinbox.com",
	"discard.email",
	"burnermail.io",
	"tempr.email",
	"moakt.com",
	"inboxkitten.com",
}

// highRiskTLDs see disproportionate abuse relative to legitimate signups.
var highRiskTLDs = map[string]struct{}{
	"tk":      {},
	"ml":      {},
	"ga":      {},
	"cf":      {},
	"gq":      {},
	"xyz":     {},
	"top":     {},
	"work":    {},
	"click":   {},
	"loan":    {},
	"download": {},
	"racing":  {},
	"win":     {},
	"bid":     {},
	"stream":  {},
}

// usernamePattern couples a compiled pattern with the single flag it raises.
// Checked in order; the ordering keeps the most specific patterns first.
type usernamePattern struct {
	re   *regexp.Regexp
	flag string
}

var usernamePatterns = []usernamePattern{
	{regexp.MustCompile(`^(test|temp|fake|spam|noreply|no-reply|donotreply)`), FlagFakeUsername},
	{regexp.MustCompile(`^(user|customer|client)[0-9]+$`), FlagGenericUsername},
	{regexp.MustCompile(`^[0-9]{4,}`), FlagLeadingDigits},
	{regexp.MustCompile(`[0-9]{6,}`), FlagExcessiveDigits},
	{regexp.MustCompile(`\+`), FlagEmailAlias},
	{regexp.MustCompile(`\.\.`), FlagRepeatedDots},
	{regexp.MustCompile(`[^a-zA-Z0-9._+\-]`), FlagInvalidChars},
}

// commonProviders anchor the typo-suggestion check.
var commonProviders = []string{
	"gmail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"icloud.com",
	"aol.com",
	"protonmail.com",
	"live.com",
	"msn.com",
	"mail.com",
}

// knownTypos maps frequent misspellings straight to the intended provider.
var knownTypos = map[string]string{
	"gmial.com":    "gmail.com",
	"gmai.com":     "gmail.com",
	"gamil.com":    "gmail.com",
	"gmal.com":     "gmail.com",
	"gmail.co":     "gmail.com",
	"gmail.cm":     "gmail.com",
	"yaho.com":     "yahoo.com",
	"yahooo.com":   "yahoo.com",
	"yhoo.com":     "yahoo.com",
	"hotmial.com":  "hotmail.com",
	"hotmal.com":   "hotmail.com",
	"hotmai.com":   "hotmail.com",
	"outlok.com":   "outlook.com",
	"outloook.com": "outlook.com",
	"iclod.com":    "icloud.com",
	"icluod.com":   "icloud.com",
}

// ccSLDs are second-level labels that behave like TLDs (example.co.uk is a
// plain provider domain, not a subdomain address).
var ccSLDs = map[string]struct{}{
	"co":  {},
	"com": {},
	"org": {},
	"net": {},
	"ac":  {},
	"gov": {},
	"edu": {},
	"or":  {},
	"ne":  {},
}
