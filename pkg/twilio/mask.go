package twilio

import (
	"log/slog"
	"net/url"
	"strings"
)

// sensitiveFields are webhook parameters that identify a caller or account.
var sensitiveFields = []string{
	"Caller", "From", "Called", "To", "CallSid", "AccountSid",
	"CallToken", "CallerZip", "CalledZip", "FromZip", "ToZip",
}

// Mask keeps the first and last three characters of s. Values of six
// characters or fewer are masked entirely.
func Mask(s string) string {
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:3] + strings.Repeat("*", len(s)-6) + s[len(s)-3:]
}

// maskedAttrs returns the sensitive fields present in form as masked log
// attributes.
func maskedAttrs(form url.Values) []any {
	var attrs []any
	for _, f := range sensitiveFields {
		if v := form.Get(f); v != "" {
			attrs = append(attrs, slog.String(f, Mask(v)))
		}
	}
	return attrs
}
