package handler

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"
)

// API scopes. A token carries a space-separated list; ScopeAll grants every
// route group.
const (
	ScopeStatements = "statements"
	ScopeNetwork    = "network"
	ScopeDisputes   = "disputes"
	ScopeAll        = "all"
)

type contextKey string

const callerKey contextKey = "caller"

// Caller is the authenticated client of a /v1 request.
type Caller struct {
	Subject string
	Scopes  []string
}

// Allows reports whether the caller may use routes guarded by scope.
func (c Caller) Allows(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || s == ScopeAll {
			return true
		}
	}
	return false
}

// JWTAuthMiddleware validates Bearer tokens, stores the Caller in the request
// context and tags the server span with it. Rejections are recorded on the
// span so failed logins show up in traces next to the request.
func JWTAuthMiddleware(auth *service.TokenAuthority, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			reject := func(reason, msg string, err error) {
				span.AddEvent("auth.rejected", trace.WithAttributes(attribute.String("auth.reason", reason)))
				logger.Warn("auth: request rejected",
					zap.String("reason", reason),
					zap.String("route", r.Method+" "+r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, msg)
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject("missing_or_malformed", "missing bearer token", nil)
				return
			}

			claims, err := auth.ValidateAccessToken(token)
			if err != nil {
				reject("invalid_token", err.Error(), err)
				return
			}

			caller := Caller{Subject: claims.Sub, Scopes: strings.Fields(claims.Scope)}
			span.SetAttributes(
				attribute.String("enduser.id", caller.Subject),
				attribute.StringSlice("enduser.scope", caller.Scopes),
			)

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope answers 403 to callers whose token lacks scope. Requests that
// carry no Caller (auth disabled) pass through.
func RequireScope(scope string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if ok && !caller.Allows(scope) {
				span := trace.SpanFromContext(r.Context())
				span.SetStatus(codes.Error, "scope denied")
				logger.Warn("auth: scope denied",
					zap.String("subject", caller.Subject),
					zap.String("required", scope),
					zap.Strings("scopes", caller.Scopes),
				)
				writeError(w, http.StatusForbidden, "token lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromContext returns the authenticated caller. ok is false on open
// routes and when auth is disabled.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
