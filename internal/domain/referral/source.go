package referral

import (
	"net/url"
	"strings"
)

// Source is the marketing channel a visitor's arrival is attributed to.
type Source string

const (
	SourceReddit    Source = "reddit"
	SourceInstagram Source = "instagram"
	SourceFacebook  Source = "facebook"
	SourceTwitter   Source = "twitter"
	SourceGoogle    Source = "google"
	SourceDirect    Source = "direct"
	SourceOther     Source = "other"
)

// IsValid reports whether s is one of the known sources.
func (s Source) IsValid() bool {
	switch s {
	case SourceReddit, SourceInstagram, SourceFacebook, SourceTwitter, SourceGoogle, SourceDirect, SourceOther:
		return true
	}
	return false
}

// sourceParams are consulted in order; ref carries a code and only classifies
// when it happens to name a channel.
var sourceParams = []string{"utm_source", "source", "ref"}

var aliases = map[string]Source{
	"reddit":    SourceReddit,
	"instagram": SourceInstagram,
	"ig":        SourceInstagram,
	"facebook":  SourceFacebook,
	"fb":        SourceFacebook,
	"twitter":   SourceTwitter,
	"x":         SourceTwitter,
	"tw":        SourceTwitter,
	"google":    SourceGoogle,
}

var hostSuffixes = []struct {
	suffix string
	source Source
}{
	{"reddit.com", SourceReddit},
	{"redd.it", SourceReddit},
	{"instagram.com", SourceInstagram},
	{"facebook.com", SourceFacebook},
	{"fb.com", SourceFacebook},
	{"fb.me", SourceFacebook},
	{"twitter.com", SourceTwitter},
	{"t.co", SourceTwitter},
	{"x.com", SourceTwitter},
}

// DetectSource attributes a visit: URL parameters first, then the stored
// cookie value, then the HTTP referrer. Nothing at all yields direct.
func DetectSource(query url.Values, cookieValue, httpReferrer string) Source {
	for _, param := range sourceParams {
		if value := strings.TrimSpace(query.Get(param)); value != "" {
			return classifyValue(value)
		}
	}

	if stored := Source(strings.ToLower(strings.TrimSpace(cookieValue))); stored.IsValid() && stored != SourceDirect {
		return stored
	}

	if referrer := strings.TrimSpace(httpReferrer); referrer != "" {
		return classifyReferrer(referrer)
	}
	return SourceDirect
}

func classifyValue(value string) Source {
	lower := strings.ToLower(value)
	if source, ok := aliases[lower]; ok {
		return source
	}
	if source := classifyHost(lower); source != SourceOther {
		return source
	}
	return SourceOther
}

func classifyReferrer(referrer string) Source {
	host := referrer
	if parsed, err := url.Parse(referrer); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	return classifyHost(strings.ToLower(host))
}

func classifyHost(host string) Source {
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	for _, entry := range hostSuffixes {
		if host == entry.suffix || strings.HasSuffix(host, "."+entry.suffix) {
			return entry.source
		}
	}
	if strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.") {
		return SourceGoogle
	}
	return SourceOther
}
