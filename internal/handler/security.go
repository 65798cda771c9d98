package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/xenking/furnicart/internal/domain/auth"
	"github.com/xenking/furnicart/internal/domain/order"
)

// APIKeyHeader carries the caller's API key on every authenticated request.
const APIKeyHeader = "api_key"

type actorContextKey struct{}

// ActorFrom returns the authenticated actor stored by the Authenticator.
func ActorFrom(ctx context.Context) (order.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(order.Actor)
	return actor, ok
}

// Authenticator authenticates requests via HMAC-SHA256 hashed API keys and
// injects the resolved actor into the request context.
type Authenticator struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given API key repository
// and HMAC pepper.
func NewAuthenticator(apikeys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate wraps next, rejecting requests whose API key does not resolve
// to a stored key. The raw key is never persisted; only its HMAC is compared.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(APIKeyHeader)
		if rawKey == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		mac := hmac.New(sha256.New, a.pepper)
		mac.Write([]byte(rawKey))
		hash := mac.Sum(nil)

		info, err := a.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		storedBytes, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		actor := order.Actor{
			UserID: info.UserID,
			Admin:  info.HasScope(auth.ScopeAdmin),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorContextKey{}, actor)))
	})
}

// RequireAdmin rejects authenticated requests whose actor lacks the admin
// scope. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok || !actor.Admin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
