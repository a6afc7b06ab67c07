package security

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "***REDACTED***"

var (
	evmAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// base58 public keys are 32 to 44 characters
	solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

	sensitiveParams = []string{"token", "secret", "key", "sig", "signature", "auth", "password"}
)

// MaskAddress keeps enough of a wallet address to correlate log lines
// without printing it in full. EVM addresses keep 0x plus four characters at
// each end, base58 addresses keep four at each end.
func MaskAddress(addr string) string {
	switch {
	case evmAddressPattern.MatchString(addr):
		return addr[:6] + "..." + addr[len(addr)-4:]
	case solanaAddressPattern.MatchString(addr):
		return addr[:4] + "..." + addr[len(addr)-4:]
	case len(addr) <= 8:
		return strings.Repeat("*", len(addr))
	default:
		return addr[:4] + "..." + addr[len(addr)-4:]
	}
}

// MaskURL strips credentials and redacts secret-looking query parameters.
// Subscribers commonly embed tokens in their webhook URLs.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	if u.User != nil {
		u.User = url.User(redacted)
	}

	q := u.Query()
	changed := false
	for name := range q {
		if isSensitiveParam(name) {
			q.Set(name, redacted)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveParams {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

type redactedError struct {
	err    error
	secret string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.secret, redacted)
}

func (e *redactedError) Unwrap() error { return e.err }

// RedactError hides every occurrence of secret in the message of err, for
// errors that echo a request URL carrying a credential. errors.Is and
// errors.As still see the wrapped error.
func RedactError(err error, secret string) error {
	if err == nil || secret == "" {
		return err
	}
	return &redactedError{err: err, secret: secret}
}
