// redact.go — masking helpers for values that must never reach a log line in
// full: provider secrets, tenant credentials, subscriber emails.
//
// Testable property 7 (credential leakage) depends on every call site that
// logs a secret or an email routing through these helpers first.
package logger

import "strings"

// RedactSecret masks a decrypted provider secret for logging. It keeps the
// first 8 characters so the value can still be correlated across log lines,
// then appends "****".
//
//	"sk_live_abcdefgh1234"  ->  "sk_live_****"
//	"short"                 ->  "short*"
//	""                      ->  "[empty]"
func RedactSecret(secret string) string {
	if len(secret) == 0 {
		return "[empty]"
	}
	if len(secret) <= 8 {
		return secret + "*"
	}
	return secret[:8] + "****"
}

// RedactEmail masks the local part of an email address, preserving the
// domain so delivery debugging remains possible.
//
//	"alice@example.com"  ->  "a***@example.com"
//	"noatsign"            ->  "n***"
//	""                    ->  "[empty]"
func RedactEmail(email string) string {
	if len(email) == 0 {
		return "[empty]"
	}
	parts := strings.SplitN(email, "@", 2)
	local := parts[0]
	masked := "***"
	if len(local) > 0 {
		masked = string(local[0]) + "***"
	}
	if len(parts) == 2 {
		return masked + "@" + parts[1]
	}
	return masked
}
