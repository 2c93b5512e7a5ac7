package middleware

import (
	"net/http"

	authcore "github.com/insano70/bcos-sub014"
)

// RequireFast returns middleware that validates bearer tokens on the
// stateless hot path, never touching Redis.
func RequireFast(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, authcore.ModeFast)
}

// RequireStrict returns middleware that additionally checks the access
// token against the blacklist, failing closed when the blacklist backend is
// unreachable.
func RequireStrict(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, authcore.ModeStrict)
}
