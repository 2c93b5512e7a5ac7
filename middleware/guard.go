package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	authcore "github.com/insano70/bcos-sub014"
	"github.com/insano70/bcos-sub014/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the validated access claims a [Guard] stored on
// the request context.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return claims, ok
}

// Guard returns middleware that authenticates requests with a bearer access
// token under the given validation mode. Validated claims land on the
// request context for [ClaimsFromContext]; the client IP and User-Agent are
// attached for engine audit attribution.
func Guard(engine *authcore.Engine, mode authcore.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestFacts(r.Context(), r)
			claims, err := engine.Validate(ctx, token, mode)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

// requestFacts attaches the caller's observable identity to ctx so engine
// audit events carry it.
func requestFacts(ctx context.Context, r *http.Request) context.Context {
	ctx = authcore.WithClientIP(ctx, clientIP(r))
	return authcore.WithUserAgent(ctx, r.UserAgent())
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
