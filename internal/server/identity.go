package server

import (
	"context"
	"net/http"

	"tailscale.com/client/tailscale/apitype"
)

type contextKey int

const (
	userInfoKey contextKey = iota
	traceKey
)

const (
	devLogin       = "local"
	devDisplayName = "Local Dev User"
)

// UserInfo identifies the caller.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
}

// WhoIser resolves a tailnet peer address to its owner. Satisfied by the
// tsnet local client.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// DevIdentity stores the local dev user on every request.
func DevIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, withUser(r, UserInfo{Login: devLogin, DisplayName: devDisplayName}))
	})
}

// TailscaleIdentity resolves the caller through WhoIs. Requests from
// peers that cannot be identified are rejected.
func TailscaleIdentity(wi WhoIser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := wi.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil || who == nil || who.UserProfile == nil || who.UserProfile.LoginName == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown tailnet identity"})
				return
			}
			info := UserInfo{
				Login:       who.UserProfile.LoginName,
				DisplayName: who.UserProfile.DisplayName,
			}
			next.ServeHTTP(w, withUser(r, info))
		})
	}
}

// withUser stores info on the request and reports the login to the request
// log, if there is one.
func withUser(r *http.Request, info UserInfo) *http.Request {
	if t, ok := r.Context().Value(traceKey).(*requestTrace); ok {
		t.login = info.Login
	}
	return r.WithContext(context.WithValue(r.Context(), userInfoKey, info))
}

// userInfoFromContext returns the caller, falling back to the dev user.
func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return UserInfo{Login: devLogin, DisplayName: devDisplayName}
}
