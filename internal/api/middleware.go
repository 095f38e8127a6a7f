/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer token
 * authentication and role checks. The authenticated caller is carried through the
 * request as an explicit `Principal` value that handlers pass into authorization
 * decisions.
 *
 * @dependencies
 * - context, net/http, strconv, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: For parsing and validating HS256 tokens.
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role allowed to operate on any account and on reference data.
const RoleAdmin = "admin"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Roles  []string
}

// HasRole reports whether the principal carries the role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// CanAccessAccount reports whether the principal may act on an account owned by ownerID.
func (p Principal) CanAccessAccount(ownerID int64) bool {
	return p.IsAdmin() || (p.UserID > 0 && p.UserID == ownerID)
}

// PrincipalContextKey is a custom type for the context key to avoid collisions.
type PrincipalContextKey string

const principalKey PrincipalContextKey = "principal"

// WithPrincipal returns a copy of ctx carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller from the request context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// TokenClaims are the claims the bank-service reads from an access token. The
// subject holds the numeric user id.
type TokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware creates a middleware that validates HS256 bearer tokens signed
// with secret. A non-empty issuer is enforced against the `iss` claim.
func JWTAuthMiddleware(secret, issuer string) func(http.Handler) http.Handler {
	key := []byte(secret)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authorization header required"})
				return
			}

			// Extract the token from "Bearer <token>"
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid Authorization header format"})
				return
			}

			principal, err := parsePrincipal(parser, key, tokenString)
			if err != nil {
				log.Printf("level=warn component=auth msg=\"token rejected\" path=%s err=%v", r.URL.Path, err)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func parsePrincipal(parser *jwt.Parser, key []byte, tokenString string) (Principal, error) {
	if len(key) == 0 {
		return Principal{}, errors.New("token secret is not configured")
	}

	claims := &TokenClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !token.Valid {
		return Principal{}, errors.New("token is not valid")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, fmt.Errorf("subject %q is not a user id", claims.Subject)
	}
	return Principal{UserID: userID, Roles: claims.Roles}, nil
}

// RequireRole rejects callers without the role with 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
				return
			}
			if !principal.HasRole(role) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "Insufficient permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
