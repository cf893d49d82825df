package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader propagates the request identifier to and from callers.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request ID string.
	RequestIDKey = "request_id"

	// maxInboundIDLength caps gateway-supplied identifiers. Oversized values
	// are replaced rather than truncated — a truncated ID correlates with
	// nothing on the caller's side either.
	maxInboundIDLength = 64
)

// RequestIDMiddleware tags every request with an identifier that appears in
// structured logs and audit rows, echoed back in the X-Request-ID response
// header so callers can quote it in support requests.
//
// An inbound X-Request-ID from a load balancer or gateway is reused so the
// hop chain stays correlatable, but only when it is at most 64 bytes of
// visible ASCII; request IDs are stored verbatim in the audit trail and
// shipped to external log sinks, so arbitrary client input is not trusted
// there. Absent or rejected IDs are replaced with a fresh UUID v4.
//
// Register before the logging middleware so every log line carries the ID:
//
//	router.Use(gin.Recovery())
//	router.Use(RequestIDMiddleware())
//	router.Use(LoggerMiddleware(cfg))
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !acceptableID(id) {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// RequestID returns the identifier assigned by RequestIDMiddleware, or the
// empty string when the middleware did not run.
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// acceptableID reports whether an inbound identifier may be reused:
// non-empty, within the length cap, visible ASCII only.
func acceptableID(id string) bool {
	if id == "" || len(id) > maxInboundIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
