package respond

import "regexp"

var (
	// user:password@ in URLs, e.g. a BACKEND_URL with credentials
	urlPasswordPattern = regexp.MustCompile(`://([^:/@\s]+):([^@/\s]+)@`)
	bearerPattern      = regexp.MustCompile(`(?i)(bearer\s+)[a-z0-9._~+/=-]+`)
	secretParamPattern = regexp.MustCompile(`(?i)((?:token|api_key|apikey|access_key|password)=)[^&\s"]+`)
)

// SanitizeError returns err's message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = urlPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	msg = bearerPattern.ReplaceAllString(msg, "${1}****")
	msg = secretParamPattern.ReplaceAllString(msg, "${1}****")
	return msg
}
