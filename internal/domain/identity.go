package domain

import (
	"fmt"
	"strings"
)

// Identity is the sole external identifier for a user: a normalized
// (lower-cased, trimmed) email address. No separate numeric user id exists.
type Identity string

// NormalizeIdentity trims and lower-cases the raw email and validates that it
// is plausibly an email address. It returns ErrInvalidIdentity otherwise.
func NormalizeIdentity(raw string) (Identity, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}

	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return "", fmt.Errorf("%w: %q is not an email address", ErrInvalidIdentity, raw)
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidIdentity, raw)
	}
	if !strings.Contains(s[at+1:], ".") {
		return "", fmt.Errorf("%w: %q has no domain", ErrInvalidIdentity, raw)
	}

	return Identity(s), nil
}

func (i Identity) String() string {
	return string(i)
}
