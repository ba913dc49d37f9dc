package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAuthState(t *testing.T) {
	tests := []struct {
		location string
		want     AuthState
	}{
		{"http://localhost:3000/login", Anonymous},
		{"http://localhost:3000/login/", Anonymous},
		{"http://localhost:3000/login?next=%2Fdashboard", Anonymous},
		{"http://localhost:3000/login/sso", Anonymous},
		{"http://localhost:3000/dashboard", Authenticated},
		{"http://localhost:3000/loginhelp", Authenticated},
		{"about:blank", Anonymous},
		{"", Anonymous},
		{"://bad", Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAuthState(tt.location, "/login"))
		})
	}
}

func TestAuthStateString(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "authenticated", Authenticated.String())
}
