package config

import "strings"

// Environment names the deployment stage the public URLs are computed for.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Endpoints holds the public URLs and cosmetic defaults shared with the landing pages.
type Endpoints struct {
	Environment           Environment `json:"environment"`
	APIURL                string      `json:"apiUrl"`
	AppURL                string      `json:"appUrl"`
	LandingURL            string      `json:"landingUrl"`
	SiteName              string      `json:"siteName"`
	OGImagesURL           string      `json:"ogImagesUrl"`
	MailchimpSubscribeURL string      `json:"mailchimpSubscribeUrl"`
}

var defaultURLs = map[Environment]struct{ api, app, landing string }{
	EnvDevelopment: {"http://localhost:4000", "http://localhost:5173", "http://localhost:3000"},
	EnvStaging:     {"https://api.staging.lingoreader.app", "https://app.staging.lingoreader.app", "https://staging.lingoreader.app"},
	EnvProduction:  {"https://api.lingoreader.app", "https://app.lingoreader.app", "https://lingoreader.app"},
}

// ParseEnvironment maps a raw value onto a known environment, defaulting to development.
func ParseEnvironment(raw string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(raw))) {
	case EnvStaging:
		return EnvStaging
	case EnvProduction:
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

// ResolveEndpoints computes the public endpoints from the given environment lookup.
// NEXT_PUBLIC_ENV wins over NODE_ENV; explicit URL variables override computed ones and
// the ngrok API variant is honoured only in development.
func ResolveEndpoints(getenv func(string) string) Endpoints {
	raw := getenv("NEXT_PUBLIC_ENV")
	if raw == "" {
		raw = getenv("NODE_ENV")
	}
	env := ParseEnvironment(raw)
	defaults := defaultURLs[env]

	e := Endpoints{
		Environment:           env,
		APIURL:                defaults.api,
		AppURL:                defaults.app,
		LandingURL:            defaults.landing,
		SiteName:              "Lingo Reader",
		OGImagesURL:           defaults.landing + "/og",
		MailchimpSubscribeURL: "https://lingoreader.us21.list-manage.com/subscribe/post?u=lingo&id=newsletter",
	}

	if v := getenv("NEXT_PUBLIC_API_URL"); v != "" {
		e.APIURL = v
	}
	if env == EnvDevelopment {
		if v := getenv("NEXT_PUBLIC_API_URL_NGROK"); v != "" {
			e.APIURL = v
		}
	}
	if v := getenv("NEXT_PUBLIC_APP_URL"); v != "" {
		e.AppURL = v
	}
	if v := getenv("NEXT_PUBLIC_LANDING_URL"); v != "" {
		e.LandingURL = v
	}
	if v := getenv("NEXT_PUBLIC_SITE_NAME"); v != "" {
		e.SiteName = v
	}
	if v := getenv("NEXT_PUBLIC_OG_IMAGES_URL"); v != "" {
		e.OGImagesURL = v
	}
	if v := getenv("NEXT_PUBLIC_MAILCHIMP_SUBSCRIBE_URL"); v != "" {
		e.MailchimpSubscribeURL = v
	}

	e.APIURL = strings.TrimRight(e.APIURL, "/")
	e.AppURL = strings.TrimRight(e.AppURL, "/")
	e.LandingURL = strings.TrimRight(e.LandingURL, "/")
	return e
}
