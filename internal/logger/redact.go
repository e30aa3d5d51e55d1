package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "jane.doe@example.com" -> "ja***@example.com"
// Short local parts (<= 2 chars) are fully masked: "ab@example.com" -> "***@example.com"
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "***@***"
	}
	name, domain := email[:at], email[at+1:]
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}
