package verify

import (
	"net/url"
	"strings"
)

// AuthState is the session's login state as seen from the current location.
type AuthState int

const (
	Anonymous AuthState = iota
	Authenticated
)

func (s AuthState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// DetectAuthState classifies a single location read taken right after
// navigating to the login page: an application that redirected away from
// loginPath already holds a session. Unparseable or blank locations count
// as Anonymous.
func DetectAuthState(location, loginPath string) AuthState {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "about" || u.Path == "" {
		return Anonymous
	}
	p := strings.TrimRight(u.Path, "/")
	login := strings.TrimRight(loginPath, "/")
	if p == login || strings.HasPrefix(p, login+"/") {
		return Anonymous
	}
	return Authenticated
}
