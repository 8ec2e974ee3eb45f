package middleware

import (
	"context"
	"errors"
	"net/http"

	"birdwatch/internal/app/session"
	"birdwatch/internal/common"
	"birdwatch/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const identityCtxKey contextKey = "identity"

// Identity is the authenticated caller, resolved once by the gate and
// passed to handlers through the request context.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
}

// SessionGate rejects requests whose token is absent, invalid, or whose
// session id has been revoked from the store.
type SessionGate struct {
	sessions session.Store
}

func NewSessionGate(sessions session.Store) *SessionGate {
	return &SessionGate{sessions: sessions}
}

func (g *SessionGate) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())

		if err != nil || token == nil {
			if err != nil && !errors.Is(err, jwtauth.ErrNoTokenFound) {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
				return
			}
			common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		identity, err := identityFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}

		alive, err := g.sessions.Exists(r.Context(), identity.SessionID)
		if err != nil {
			common.RespondWithError(w, http.StatusInternalServerError, "Failed to check session")
			return
		}
		if !alive {
			common.RespondWithError(w, http.StatusUnauthorized, "Session expired or logged out")
			return
		}

		ctx := context.WithValue(r.Context(), identityCtxKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve reports the caller's identity on routes where authentication is
// optional. It never writes to the response.
func (g *SessionGate) Resolve(r *http.Request) (*Identity, bool) {
	token, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || token == nil {
		return nil, false
	}
	identity, err := identityFromClaims(claims)
	if err != nil {
		return nil, false
	}
	alive, err := g.sessions.Exists(r.Context(), identity.SessionID)
	if err != nil || !alive {
		return nil, false
	}
	return identity, true
}

func identityFromClaims(claims map[string]interface{}) (*Identity, error) {
	userID, err := security.GetUserIDFromClaims(claims)
	if err != nil {
		return nil, err
	}
	username, err := security.GetUsernameFromClaims(claims)
	if err != nil {
		return nil, err
	}
	sessionID, err := security.GetSessionIDFromClaims(claims)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: userID, Username: username, SessionID: sessionID}, nil
}

// GetIdentityFromContext returns the identity placed by Authenticator.
func GetIdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey).(*Identity)
	return identity, ok
}
