/**
 * @description
 * This file contains custom middleware for the wallet router: session
 * authentication, CSRF verification on mutating requests, role gating and
 * structured request logging.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Session token verification.
 * - go.uber.org/zap: Request logging.
 */

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/domain"
)

// CSRFHeader carries the anti-forgery token on mutating requests.
const CSRFHeader = "X-CSRF-TOKEN"

// StatusCSRFMismatch is the non-standard "page expired" status used for CSRF failures.
const StatusCSRFMismatch = 419

type sessionContextKey struct{}

var errMissingSubject = errors.New("session token has no subject")

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session token for the given team member.
func IssueSessionToken(secret string, session domain.Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Name:  session.Name,
		Roles: session.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.TeamMemberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken verifies an HS256 session token and returns its session.
func ParseSessionToken(secret, token string) (domain.Session, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Session{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Session{}, errMissingSubject
	}
	return domain.Session{TeamMemberID: claims.Subject, Name: claims.Name, Roles: claims.Roles}, nil
}

// CSRFToken derives the anti-forgery token bound to a team member.
func CSRFToken(secret, teamMemberID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(teamMemberID))
	return hex.EncodeToString(mac.Sum(nil))
}

// SessionFromContext returns the authenticated session stored by SessionAuthMiddleware.
func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(domain.Session)
	return session, ok
}

// SessionAuthMiddleware validates the bearer session token.
func SessionAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			session, err := ParseSessionToken(secret, tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFMiddleware rejects mutating requests whose token does not match the session.
func CSRFMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			session, ok := SessionFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			got := r.Header.Get(CSRFHeader)
			want := CSRFToken(secret, session.TeamMemberID)
			if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
				writeError(w, StatusCSRFMismatch, "CSRF token mismatch. Please refresh and try again.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole only lets through sessions holding one of the roles.
func RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, _ := SessionFromContext(r.Context())
			if !domain.HasAnyRole(session, roles...) {
				writeError(w, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
