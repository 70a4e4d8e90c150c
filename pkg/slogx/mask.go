package slogx

import "strings"

// MaskEmail hides the local part of an address for logging, keeping the
// first character and the domain: "alice@example.com" becomes
// "a***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
