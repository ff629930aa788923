package session

import "errors"

// ErrEndpointBlocked is returned by BeginLogin for servers whose admins
// asked third-party clients not to connect.
var ErrEndpointBlocked = errors.New("this server does not allow third-party clients")

// ErrNoCredentials is returned by BeginLogin when no usable login body
// can be built from the configuration.
var ErrNoCredentials = errors.New("no credentials configured")

var blockedEndpoints = map[string]struct{}{
	"ppy.sh":    {},
	"gatari.pw": {},
}

// Servers that accept connections but asked for score submission to stay
// off.
var noSubmitEndpoints = map[string]struct{}{
	"akatsuki.gg": {},
	"ripple.moe":  {},
}

// EndpointBlocked reports whether the endpoint refuses third-party
// clients entirely.
func EndpointBlocked(endpoint string) bool {
	_, ok := blockedEndpoints[endpoint]
	return ok
}

// SubmissionDisabled reports whether score submission must stay disabled
// for the endpoint.
func SubmissionDisabled(endpoint string) bool {
	_, ok := noSubmitEndpoints[endpoint]
	return ok
}

// SubmissionAllowed reports whether scores may be submitted to this
// session's endpoint.
func (s *Session) SubmissionAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !SubmissionDisabled(s.endpoint)
}
