package middleware

import (
	"net/http"
	"strings"
)

// Keys holds the configured API keys. Public keys grant the read
// surface, admin keys grant everything. An empty set disables the
// corresponding check so local dev works without keys.
type Keys struct {
	Public []string
	Admin  []string
}

type role int

const (
	roleNone role = iota
	rolePublic
	roleAdmin
)

// classify resolves the presented key against the configured sets.
// Admin wins when a key appears in both.
func (k Keys) classify(r *http.Request) role {
	key := presentedKey(r)
	if key == "" {
		return roleNone
	}
	for _, a := range k.Admin {
		if a == key {
			return roleAdmin
		}
	}
	for _, p := range k.Public {
		if p == key {
			return rolePublic
		}
	}
	return roleNone
}

// presentedKey accepts either "Authorization: Bearer <key>" or the
// X-API-Key header.
func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireAny admits requests carrying any configured key. With no keys
// configured at all the check is disabled.
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys.Public) == 0 && len(keys.Admin) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys.classify(r) == roleNone {
				deny(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits only admin keys. With no admin keys configured
// the check is disabled.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys.Admin) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys.classify(r) != roleAdmin {
				deny(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
