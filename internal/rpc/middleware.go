package rpc

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"champ/core"
	"champ/internal/auth"
)

var rpcLog = log.WithField("component", "rpc")

// SetRPCLogger overrides the package-level logger entry used by this
// package's request logging middleware.
func SetRPCLogger(l *log.Logger) {
	rpcLog = l.WithField("component", "rpc")
}

// loggingMiddleware logs method, path and duration for every request,
// mirroring the teacher's walletserver request logger.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		rpcLog.WithField("duration", time.Since(start)).Infof("%s %s", r.Method, r.URL.Path)
	})
}

type claimsContextKey struct{}

// claimsFromContext retrieves the Claims authMiddleware attached to the
// request context, if any.
func claimsFromContext(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(auth.Claims)
	return c, ok
}

// authMiddleware rejects any request without a valid bearer token,
// collapsing every failure into spec.md's single Unauthenticated response.
func authMiddleware(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.Verify(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, core.CodeUnauthenticated, "unauthenticated")
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
