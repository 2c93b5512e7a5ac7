package middleware

import (
	"net/http"

	authcore "github.com/insano70/bcos-sub014"
)

// CSRFHeader is the request header the CSRF middleware reads.
const CSRFHeader = "X-CSRF-Token"

// RequireCSRF returns middleware that checks the X-CSRF-Token header for
// state-changing requests. Safe methods pass through untouched.
//
// For [authcore.CSRFFlowAuthenticated] the middleware must run inside a
// [Guard] so the validated claims supply the user binding; without claims
// the request is rejected.
func RequireCSRF(engine *authcore.Engine, flow authcore.CSRFFlow) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if engine == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			var userID string
			if flow == authcore.CSRFFlowAuthenticated {
				claims, ok := ClaimsFromContext(r.Context())
				if !ok {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				userID = claims.Subject
			}

			device := authcore.DeviceInfo{
				IPAddress: clientIP(r),
				UserAgent: r.UserAgent(),
			}
			token := r.Header.Get(CSRFHeader)
			if err := engine.VerifyCSRFToken(r.Context(), token, flow, device, userID); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
