package logging

import "regexp"

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// Matches bearer credential tokens (three base64url segments).
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// Matches token values embedded in query strings or error bodies.
	tokenParamPattern = regexp.MustCompile(`(?i)(token|authorization)=[A-Za-z0-9-_.]+`)
)

// SanitizeError strips credential material from an error message before it is
// logged. API errors can echo request headers back in their bodies.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	s := bearerPattern.ReplaceAllString(err.Error(), "Bearer "+RedactedText)
	return tokenParamPattern.ReplaceAllString(s, "${1}="+RedactedText)
}

// SanitizeToken replaces all but the first few characters of a token so logs
// can correlate sessions without storing the credential.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return RedactedText
	}
	return token[:8] + "..." + RedactedText
}
