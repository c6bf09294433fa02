package authflow

import (
	"fmt"
	"strings"
)

// localPhoneDigits is the fixed length of a local subscriber number.
const localPhoneDigits = 10

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// normalizePhone validates a local phone number (exactly ten digits,
// starting 6 through 9) and returns it prefixed with the configured
// country code. Validation runs before any network call.
func normalizePhone(countryCode, raw string) (string, error) {
	digits := strings.TrimSpace(raw)
	digits = strings.TrimPrefix(digits, countryCode)
	digits = strings.ReplaceAll(digits, " ", "")

	if len(digits) != localPhoneDigits || !isDigits(digits) {
		return "", fmt.Errorf("%w: expected %d digits", ErrInvalidDestination, localPhoneDigits)
	}
	if digits[0] < '6' || digits[0] > '9' {
		return "", fmt.Errorf("%w: mobile numbers start with 6-9", ErrInvalidDestination)
	}
	return countryCode + digits, nil
}

// validateEmail applies the same minimal shape check the backend applies
// before dispatching a code. Full address validation is the backend's job.
func validateEmail(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	at := strings.IndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidDestination)
	}
	if !strings.Contains(addr[at+1:], ".") {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidDestination)
	}
	return addr, nil
}
