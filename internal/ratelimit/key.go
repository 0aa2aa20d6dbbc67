package ratelimit

import "strings"

// Endpoint classes with independent limit budgets.
const (
	ClassSignup = "signup"
	ClassLogin  = "login"
)

// Key builds a limiter key from the client address and endpoint class so
// that signup and login limits are tracked independently per client.
func Key(clientAddr, class string) string {
	clientAddr = strings.TrimSpace(clientAddr)
	if clientAddr == "" || class == "" {
		return ""
	}
	return class + ":" + clientAddr
}
