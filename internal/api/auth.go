package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type ctxKey int

const userKey ctxKey = iota

// User is the authenticated caller.
type User struct {
	ID    string
	Email string
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var errNoSubject = errors.New("token has no subject")

// parseToken verifies an HS256 token signed with secret and returns the
// caller it identifies.
func parseToken(raw string, secret []byte) (User, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return User{}, err
	}
	if claims.Subject == "" {
		return User{}, errNoSubject
	}
	return User{ID: claims.Subject, Email: claims.Email}, nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	secret := []byte(s.cfg.JWTSecret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(secret) == 0 {
			writeError(w, http.StatusServiceUnavailable, "authentication is not configured")
			return
		}
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := parseToken(strings.TrimSpace(raw), secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		s.ensureProfile(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func userFrom(ctx context.Context) User {
	u, _ := ctx.Value(userKey).(User)
	return u
}

// ensureProfile records the token email on the caller's profile the first
// time a process sees them, so alert checks can reach the owner before the
// profile is edited.
func (s *Server) ensureProfile(ctx context.Context, user User) {
	if user.Email == "" {
		return
	}
	if _, seen := s.profiles.Load(user.ID); seen {
		return
	}
	if err := s.store.EnsureUserProfile(ctx, user.ID, user.Email); err != nil {
		zap.S().Warnw("api: ensure profile", "user", user.ID, "error", err)
		return
	}
	s.profiles.Store(user.ID, struct{}{})
}
