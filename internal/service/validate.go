package service

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	digitsOnly   = regexp.MustCompile(`^[0-9]+$`)
)

const minPhoneLength = 10

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "required")
	}
	if !emailPattern.MatchString(email) {
		return invalid("email", "must look like name@domain.tld")
	}
	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return invalid("phone", "required")
	}
	if !digitsOnly.MatchString(phone) || len(phone) < minPhoneLength {
		return invalid("phone", "must be at least 10 digits")
	}
	return nil
}

func validateAge(age int) error {
	if age <= 0 {
		return invalid("age", "must be a positive number")
	}
	return nil
}

func required(field, value string) error {
	if value == "" {
		return invalid(field, "required")
	}
	return nil
}
