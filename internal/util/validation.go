package util

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/coah80/yoinkgram/internal/config"
)

type LinkKind int

const (
	LinkNone LinkKind = iota
	LinkInstagram
	LinkYouTube
	LinkGeneric
	LinkSearch
)

func (k LinkKind) String() string {
	switch k {
	case LinkInstagram:
		return "instagram"
	case LinkYouTube:
		return "youtube"
	case LinkGeneric:
		return "url"
	case LinkSearch:
		return "search"
	default:
		return "none"
	}
}

// IsLink reports whether the kind is one of the URL classifications.
func (k LinkKind) IsLink() bool {
	return k == LinkInstagram || k == LinkYouTube || k == LinkGeneric
}

var (
	instagramRe = regexp.MustCompile(`(?i)^https?://(www\.)?(instagram\.com|instagr\.am)/.+`)
	youtubeRe   = regexp.MustCompile(`(?i)^https?://(www\.|m\.|music\.)?(youtube\.com|youtu\.be)/.+`)
	anyURLRe    = regexp.MustCompile(`(?i)^https?://\S+$`)
)

// ClassifyText maps a message to what the bot should do with it. The
// patterns are tried in order and the first match wins.
func ClassifyText(text string) LinkKind {
	text = strings.TrimSpace(text)
	switch {
	case instagramRe.MatchString(text):
		return LinkInstagram
	case youtubeRe.MatchString(text):
		return LinkYouTube
	case anyURLRe.MatchString(text):
		return LinkGeneric
	case utf8.RuneCountInString(text) >= config.MinSearchQueryLength:
		return LinkSearch
	default:
		return LinkNone
	}
}

var (
	ErrURLRequired = errors.New("URL is required")
	ErrURLTooLong  = errors.New("URL is too long")
	ErrURLInvalid  = errors.New("invalid URL format")
	ErrURLScheme   = errors.New("only HTTP/HTTPS URLs are allowed")
	ErrPrivateHost = errors.New("private/local URLs are not allowed")
)

// ValidateURL rejects URLs that yt-dlp must not be pointed at, such as
// loopback or LAN hosts.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return ErrURLRequired
	}
	if len(rawURL) > config.MaxURLLength {
		return ErrURLTooLong
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrURLInvalid
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrURLScheme
	}

	hostname := strings.ToLower(parsed.Hostname())
	if isPrivateHost(hostname) {
		return ErrPrivateHost
	}

	return nil
}

var privateNets []*net.IPNet

func init() {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"0.0.0.0/8",
		"169.254.0.0/16",
		"100.64.0.0/10",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, _ := net.ParseCIDR(cidr)
		privateNets = append(privateNets, network)
	}
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range privateNets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// lookupIP is swapped in tests.
var lookupIP = net.LookupIP

func isPrivateHost(hostname string) bool {
	if hostname == "" || hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}

	ip := net.ParseIP(strings.Trim(hostname, "[]"))
	if ip != nil {
		return isPrivateIP(ip)
	}

	ips, err := lookupIP(hostname)
	if err != nil {
		return true
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return true
		}
	}
	return false
}

// NormalizeURL rewrites known mirror hosts to the canonical one and strips
// surrounding whitespace.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	replacements := map[string]string{
		"instagr.am":      "www.instagram.com",
		"ddinstagram.com": "www.instagram.com",
		"m.youtube.com":   "www.youtube.com",
		"fxtwitter.com":   "x.com",
		"vxtwitter.com":   "x.com",
		"twitter.com":     "x.com",
	}
	if replacement, ok := replacements[strings.ToLower(u.Host)]; ok {
		u.Host = replacement
	}
	return u.String()
}
