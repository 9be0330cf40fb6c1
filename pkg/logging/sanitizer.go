package logging

import (
	"regexp"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// MaxErrorMessageLength caps provider error messages stored on model results.
	MaxErrorMessageLength = 500
	RedactedText          = "[REDACTED]"
)

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// Applied in order. Credentials embedded in URLs go last so the key and
// token rules see the unmodified text first.
var (
	passwordRule = redaction{
		regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`),
		"${1}=" + RedactedText,
	}
	userinfoRule = redaction{
		regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`),
		"://" + RedactedText + "@" + RedactedText,
	}

	messageRules = []redaction{
		passwordRule,
		{regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`), "Bearer " + RedactedText},
		// Includes Gemini's ?key= query parameter.
		{regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`), "${1}=" + RedactedText},
		// OpenAI/Anthropic sk-..., Stripe sk_live_/rk_test_ and whsec_ secrets.
		{regexp.MustCompile(`\b(sk-(?:ant-)?[A-Za-z0-9-_]{16,}|(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{10,}|whsec_[A-Za-z0-9]{10,})`), RedactedText},
		userinfoRule,
	}
)

func redact(s string, rules ...redaction) string {
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// SanitizeConnectionString hides passwords in key=value and URL connection strings.
func SanitizeConnectionString(connStr string) string {
	return redact(connStr, passwordRule, userinfoRule)
}

// SanitizeMessage redacts credentials from provider, Stripe and database messages.
func SanitizeMessage(msg string) string {
	return redact(msg, messageRules...)
}

func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeMessage(err.Error())
}

// SafeError is zap.Error for errors whose text may carry credentials.
func SafeError(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", SanitizeError(err))
}

// ErrorMessage turns an error into a message safe to store and show to users.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return TruncateString(SanitizeError(err), MaxErrorMessageLength)
}

// TruncateString cuts s to at most maxLen bytes, never inside a UTF-8
// sequence, and marks the cut with "...".
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
