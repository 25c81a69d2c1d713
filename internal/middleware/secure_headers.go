package middleware

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecureHeadersConfig contains configuration for secure headers
type SecureHeadersConfig struct {
	// HSTS settings
	UseHSTS               bool
	HSTSMaxAge            time.Duration
	HSTSIncludeSubdomains bool

	// CSP settings
	UseCSP        bool
	CSPDirectives map[string]string

	XFrameOptions  string
	ReferrerPolicy string

	// NoStorePrefixes lists path prefixes whose responses must never be cached
	NoStorePrefixes []string
}

// DefaultSecureHeadersConfig returns the headers used by the JSON API
func DefaultSecureHeadersConfig() SecureHeadersConfig {
	return SecureHeadersConfig{
		UseHSTS:               true,
		HSTSMaxAge:            365 * 24 * time.Hour,
		HSTSIncludeSubdomains: true,

		UseCSP: true,
		CSPDirectives: map[string]string{
			"default-src":     "'none'",
			"frame-ancestors": "'none'",
		},

		XFrameOptions:   "DENY",
		ReferrerPolicy:  "strict-origin-when-cross-origin",
		NoStorePrefixes: []string{"/api/subscription", "/api/limits", "/api/usage"},
	}
}

// SecureHeadersMiddleware adds security headers to responses
func SecureHeadersMiddleware(config SecureHeadersConfig) gin.HandlerFunc {
	hsts := ""
	if config.UseHSTS {
		hsts = "max-age=" + strconv.FormatInt(int64(config.HSTSMaxAge.Seconds()), 10)
		if config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	csp := ""
	if config.UseCSP {
		directives := make([]string, 0, len(config.CSPDirectives))
		for directive, value := range config.CSPDirectives {
			directives = append(directives, directive+" "+value)
		}
		sort.Strings(directives)
		csp = strings.Join(directives, "; ")
	}

	return func(c *gin.Context) {
		if hsts != "" {
			c.Header("Strict-Transport-Security", hsts)
		}
		if csp != "" {
			c.Header("Content-Security-Policy", csp)
		}
		if config.XFrameOptions != "" {
			c.Header("X-Frame-Options", config.XFrameOptions)
		}
		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}
		c.Header("X-Content-Type-Options", "nosniff")

		for _, prefix := range config.NoStorePrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Header("Cache-Control", "no-store")
				break
			}
		}

		c.Next()
	}
}
