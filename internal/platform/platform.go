package platform

import (
	"net/url"
	"strings"
)

// Platform identifies a supported media source.
type Platform string

const (
	Twitter   Platform = "twitter"
	Reddit    Platform = "reddit"
	Instagram Platform = "instagram"
	YouTube   Platform = "youtube"
)

var allPlatforms = []Platform{Twitter, Reddit, Instagram, YouTube}

var platformSet = func() map[Platform]struct{} {
	set := make(map[Platform]struct{}, len(allPlatforms))
	for _, platform := range allPlatforms {
		set[platform] = struct{}{}
	}
	return set
}()

// Hosts a platform claims. Subdomains of each entry match as well.
var platformHosts = map[Platform][]string{
	Twitter:   {"twitter.com", "x.com", "t.co"},
	Reddit:    {"reddit.com", "redd.it"},
	Instagram: {"instagram.com", "instagr.am"},
	YouTube:   {"youtube.com", "youtu.be", "youtube-nocookie.com"},
}

// All returns the ordered list of known platforms.
func All() []Platform {
	cp := make([]Platform, len(allPlatforms))
	copy(cp, allPlatforms)
	return cp
}

// Parse converts a string into a known Platform.
func Parse(value string) (Platform, bool) {
	normalized := Platform(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := platformSet[normalized]
	return normalized, ok
}

// Detect maps a URL to the platform that claims its host. Pure string
// matching, no I/O.
func Detect(rawURL string) (Platform, bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", false
	}
	for _, platform := range allPlatforms {
		for _, candidate := range platformHosts[platform] {
			if host == candidate || strings.HasSuffix(host, "."+candidate) {
				return platform, true
			}
		}
	}
	return "", false
}

// EnvKey returns the environment variable that selects library mode for the
// platform, e.g. TWITTER_USE_LIBRARY.
func (p Platform) EnvKey() string {
	return strings.ToUpper(string(p)) + "_USE_LIBRARY"
}

func (p Platform) String() string {
	return string(p)
}
