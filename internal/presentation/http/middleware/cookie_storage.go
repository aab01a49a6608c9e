package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieStorage keeps durable visitor values in first-party cookies. Values
// set during a request are visible to later reads in the same request.
type CookieStorage struct {
	c       *gin.Context
	secure  bool
	mu      sync.Mutex
	pending map[string]string
}

// NewCookieStorage binds a storage to the current request.
func NewCookieStorage(c *gin.Context, secure bool) *CookieStorage {
	return &CookieStorage{c: c, secure: secure, pending: make(map[string]string)}
}

// Get returns the value of a cookie.
func (s *CookieStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	v, ok := s.pending[key]
	s.mu.Unlock()
	if ok {
		return v, v != ""
	}

	raw, err := s.c.Cookie(key)
	if err != nil || raw == "" {
		return "", false
	}
	return raw, true
}

// Set writes a cookie readable by the landing pages.
func (s *CookieStorage) Set(key, value string, maxAge time.Duration) {
	s.mu.Lock()
	s.pending[key] = value
	s.mu.Unlock()

	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(key, value, int(maxAge.Seconds()), "/", "", s.secure, false)
}
