// security.go provides Gin middleware that stamps protective response headers
// on every route. This service only ever answers with JSON or archived receipt
// images — there is no HTML surface — so the document-oriented directives are
// fixed and only transport security is configurable.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const hstsDefaultMaxAge = 31536000 // 1 year, in seconds

// SecurityHeaders configures the transport-security part of the header set.
type SecurityHeaders struct {
	// HSTS emits Strict-Transport-Security. Leave off for plain-HTTP dev
	// instances; a localhost that once sent HSTS keeps redirecting the
	// browser to https long after the flag is flipped back.
	HSTS bool
	// HSTSMaxAge is the max-age in seconds. Zero or negative falls back to
	// one year.
	HSTSMaxAge int
	// HSTSIncludeSubdomains extends the pin to subdomains.
	HSTSIncludeSubdomains bool
}

// DefaultSecurityHeaders returns the production policy: HSTS pinned for a
// year, subdomains included.
func DefaultSecurityHeaders() SecurityHeaders {
	return SecurityHeaders{
		HSTS:                  true,
		HSTSMaxAge:            hstsDefaultMaxAge,
		HSTSIncludeSubdomains: true,
	}
}

// SecurityHeadersMiddleware adds the fixed API header set plus the configured
// transport directives to every response.
//
// The fixed set assumes no browser ever renders a response from this service
// as a document: scripting, framing, and type-sniffing are all denied, and
// nothing cross-origin may embed what we serve. That holds for the JSON
// endpoints and for the admin archive fetch, which returns raw image bytes.
func SecurityHeadersMiddleware(hdrs SecurityHeaders) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hdrs.HSTS {
			maxAge := hdrs.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = hstsDefaultMaxAge
			}
			hstsValue := "max-age=" + strconv.Itoa(maxAge)
			if hdrs.HSTSIncludeSubdomains {
				hstsValue += "; includeSubDomains"
			}
			c.Header("Strict-Transport-Security", hstsValue)
		}

		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Header("Cross-Origin-Resource-Policy", "same-origin")

		c.Next()
	}
}
