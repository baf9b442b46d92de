package util

import "strings"

type FetchErrorKind int

const (
	KindGeneric FetchErrorKind = iota
	KindNeedsCredentials
	KindUnavailable
	KindFormatUnavailable
	KindCookieConfig
)

func (k FetchErrorKind) String() string {
	switch k {
	case KindNeedsCredentials:
		return "needs-credentials"
	case KindUnavailable:
		return "unavailable"
	case KindFormatUnavailable:
		return "format-unavailable"
	case KindCookieConfig:
		return "cookie-config"
	default:
		return "generic"
	}
}

// FetchErrorRule matches when every substring in AllOf occurs in the
// lowercased diagnostic text.
type FetchErrorRule struct {
	AllOf []string
	Kind  FetchErrorKind
}

// FetchErrorRules is evaluated top to bottom. Format rules come first
// because "requested format is not available" also contains "not available".
var FetchErrorRules = []FetchErrorRule{
	{AllOf: []string{"no video formats found"}, Kind: KindFormatUnavailable},
	{AllOf: []string{"requested format is not available"}, Kind: KindFormatUnavailable},
	{AllOf: []string{"requested format not available"}, Kind: KindFormatUnavailable},

	// The configured browser or cookies file is missing on this host.
	{AllOf: []string{"could not find", "cookies"}, Kind: KindCookieConfig},

	{AllOf: []string{"login required"}, Kind: KindNeedsCredentials},
	{AllOf: []string{"authentication"}, Kind: KindNeedsCredentials},
	{AllOf: []string{"sign in to confirm"}, Kind: KindNeedsCredentials},
	{AllOf: []string{"use --cookies"}, Kind: KindNeedsCredentials},
	{AllOf: []string{"rate-limit reached or login"}, Kind: KindNeedsCredentials},

	{AllOf: []string{"not available"}, Kind: KindUnavailable},
	{AllOf: []string{"unavailable"}, Kind: KindUnavailable},
	{AllOf: []string{"private"}, Kind: KindUnavailable},
	{AllOf: []string{"restricted"}, Kind: KindUnavailable},
	{AllOf: []string{"has been removed"}, Kind: KindUnavailable},
	{AllOf: []string{"http error 404"}, Kind: KindUnavailable},
}

// ClassifyFetchError picks the first rule matching the fetch tool's
// diagnostic output. Unmatched text is KindGeneric.
func ClassifyFetchError(text string) FetchErrorKind {
	msg := strings.ToLower(text)
	for _, rule := range FetchErrorRules {
		if rule.matches(msg) {
			return rule.Kind
		}
	}
	return KindGeneric
}

func (r FetchErrorRule) matches(msg string) bool {
	if len(r.AllOf) == 0 {
		return false
	}
	for _, s := range r.AllOf {
		if !strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
