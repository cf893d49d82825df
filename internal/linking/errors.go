// Package linking defines the linking-code format and the failure taxonomy
// shared by the web API, the Telegram bot, and the background jobs. The
// package holds no state and talks to no store — services wire these
// definitions to the database; handlers translate them to wire responses
// and chat messages.
package linking

import "errors"

// Failure modes of the linking workflow. The first five are expected
// user-facing outcomes and are never retried; ErrStorageUnavailable is the
// only condition eligible for a bounded automatic retry inside the service
// layer. ErrUpstreamUnavailable covers the external collaborators (Telegram,
// LLM endpoint) rather than the store.
var (
	ErrMalformed              = errors.New("linking: code is malformed")
	ErrNotFound               = errors.New("linking: code not found")
	ErrExpired                = errors.New("linking: code expired")
	ErrAlreadyUsed            = errors.New("linking: code already used")
	ErrAlreadyLinkedElsewhere = errors.New("linking: identity already has an active link")
	ErrStorageUnavailable     = errors.New("linking: storage unavailable")
	ErrUpstreamUnavailable    = errors.New("linking: upstream unavailable")
)

// Wire reason strings for validation failures. Clients key corrective help
// text off these values, so expired, already-used, and unknown codes must
// stay distinguishable.
const (
	ReasonMalformed   = "malformed"
	ReasonNotFound    = "not_found"
	ReasonAlreadyUsed = "already_used"
	ReasonExpired     = "expired"
)

// Reason maps a validation failure to its wire reason string. Returns ""
// for errors that are not validation outcomes (storage, upstream).
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return ReasonMalformed
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrAlreadyUsed):
		return ReasonAlreadyUsed
	case errors.Is(err, ErrExpired):
		return ReasonExpired
	}
	return ""
}

// IsUserFacing reports whether err is an expected outcome the end user can
// act on, as opposed to an infrastructure failure.
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrAlreadyLinkedElsewhere)
}
