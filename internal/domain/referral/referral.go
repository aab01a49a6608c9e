// Package referral captures referral codes from landing URLs, keeps them in
// durable visitor storage and attributes a visitor's arrival to a marketing source.
package referral

import (
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

const (
	// StorageKey is the durable key the referral code is kept under.
	StorageKey = "lingo_ref"
	// SourceKey is the durable key the attributed referral source is kept under.
	SourceKey = "lingo_referral_source"
	// RetentionPeriod bounds how long a captured code or source is kept.
	RetentionPeriod = 30 * 24 * time.Hour

	queryParam = "ref"
)

// Storage is durable per-visitor key/value storage. In the HTTP layer it is
// backed by cookies; a nil Storage means no visitor context is available.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string, maxAge time.Duration)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Capture reads the ref query parameter from pageURL and persists it.
// It returns the captured code and whether anything was stored.
func Capture(pageURL *url.URL, store Storage, logger *slog.Logger) (string, bool) {
	if logger == nil {
		logger = discard
	}
	if store == nil || pageURL == nil {
		return "", false
	}

	code := strings.TrimSpace(pageURL.Query().Get(queryParam))
	if code == "" {
		logger.Debug("No referral code in landing URL", "path", pageURL.Path)
		return "", false
	}

	store.Set(StorageKey, code, RetentionPeriod)
	logger.Info("Referral code captured", "code", code, "path", pageURL.Path)
	return code, true
}

// Get returns the persisted referral code.
func Get(store Storage) (string, bool) {
	if store == nil {
		return "", false
	}
	code, ok := store.Get(StorageKey)
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

// AddToURL appends ref=<code> to rawURL when a code is stored. The separator is
// chosen by the mere presence of '?', so "foo?" becomes "foo?&ref=x".
func AddToURL(rawURL string, store Storage) string {
	code, ok := Get(store)
	if !ok {
		return rawURL
	}
	separator := "?"
	if strings.Contains(rawURL, "?") {
		separator = "&"
	}
	return rawURL + separator + queryParam + "=" + url.QueryEscape(code)
}
