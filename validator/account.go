package validator

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

var usernameRegex = regexp.MustCompile(`\A[a-z0-9_-]+\z`)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 8
)

func (v *Validator) ValidateRegistration(username, password string) error {
	var errs []error

	runes := utf8.RuneCountInString(username)
	if runes < minUsernameLen || runes > maxUsernameLen {
		errs = append(errs, fmt.Errorf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen))
	}
	if !usernameRegex.MatchString(username) {
		errs = append(errs, errors.New("username may only contain lowercase letters, digits, hyphens and underscores"))
	}

	if utf8.RuneCountInString(password) < minPasswordLen {
		errs = append(errs, fmt.Errorf("password must be at least %d characters", minPasswordLen))
	}

	return invalid(errors.Join(errs...))
}
