// Package middleware provides HTTP middleware for the widget gateway.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// SiteIDKey is the context key for the embedding site id.
	SiteIDKey ContextKey = "site_id"
	// VisitorIDKey is the context key for the visitor id.
	VisitorIDKey ContextKey = "visitor_id"
)

// EmbedClaims is the signed embed token a site presents when the gateway
// requires authentication. It identifies the embedding site, not the end
// user; end-user identity is owned by the conversation service.
type EmbedClaims struct {
	jwt.RegisteredClaims
	SiteID string `json:"site_id"`
}

// EmbedAuth verifies the site embed token. With an empty secret the
// middleware is a pass-through, matching deployments where the gateway
// sits behind the site's own origin.
func EmbedAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			claims := &EmbedClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid embed token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SiteIDKey, claims.SiteID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSiteID gets the embedding site id from context.
func GetSiteID(ctx context.Context) string {
	if v := ctx.Value(SiteIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetVisitorID gets the visitor id from context.
func GetVisitorID(ctx context.Context) string {
	if v := ctx.Value(VisitorIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// WithVisitorID stores the visitor id on the context.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, VisitorIDKey, id)
}
