package tool

import "regexp"

var (
	apiKeyPattern = regexp.MustCompile(`key=[A-Za-z0-9_-]+`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
)

// SanitizeError strips API keys and URLs from error messages before they
// reach the model or the client.
func SanitizeError(msg string) string {
	msg = apiKeyPattern.ReplaceAllString(msg, "key=***")
	msg = urlPattern.ReplaceAllString(msg, "[API endpoint]")
	return msg
}
