package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/tendant/edu-cms/pkg/educms"
)

const defaultTokenTTL = 24 * time.Hour

// Auth issues and verifies HS256 bearer tokens carrying the caller's user
// id ("sub") and role ("role").
type Auth struct {
	ja  *jwtauth.JWTAuth
	ttl time.Duration
}

func NewAuth(secret string, ttl time.Duration) (*Auth, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Auth{ja: jwtauth.New("HS256", []byte(secret), nil), ttl: ttl}, nil
}

// Issue signs a token for user.
func (a *Auth) Issue(user *educms.User) (string, error) {
	claims := map[string]interface{}{
		"sub":  user.ID.String(),
		"role": string(user.Role),
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, a.ttl)
	_, token, err := a.ja.Encode(claims)
	return token, err
}

// Verifier extracts and verifies a bearer token when present. Requests
// without one pass through anonymously.
func (a *Auth) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(a.ja)
}

// Caller is the authenticated identity of a request.
type Caller struct {
	UserID uuid.UUID
	Role   educms.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == educms.RoleAdmin
}

type callerKey struct{}

// CallerFromContext returns the caller stored by RequireUser or RequireAdmin.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

func callerFromToken(ctx context.Context) (Caller, bool) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return Caller{}, false
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return Caller{}, false
	}
	role, _ := claims["role"].(string)
	if !educms.Role(role).Valid() {
		return Caller{}, false
	}
	return Caller{UserID: id, Role: educms.Role(role)}, true
}

// RequireUser rejects requests without a valid token.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFromToken(r.Context())
		if !ok {
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// RequireAdmin rejects requests whose token does not carry the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ := CallerFromContext(r.Context())
		if !caller.IsAdmin() {
			forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
