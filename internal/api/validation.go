package api

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

func validateUUID(value, fieldName string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("%s is required", fieldName)
	}
	if !uuidRegex.MatchString(clean) {
		return "", fmt.Errorf("%s is invalid", fieldName)
	}
	return clean, nil
}

func validateEmail(value string) (string, error) {
	clean := strings.ToLower(strings.TrimSpace(value))
	if clean == "" {
		return "", fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(clean); err != nil {
		return "", fmt.Errorf("email is invalid")
	}
	return clean, nil
}

func validatePassword(value string) error {
	if len(value) < 8 {
		return fmt.Errorf("password must be at least 8 chars")
	}
	if len(value) > 128 {
		return fmt.Errorf("password must be <= 128 chars")
	}
	return nil
}

func validateTwinName(value string) (string, error) {
	clean := strings.TrimSpace(value)
	length := len([]rune(clean))
	if length < 2 {
		return "", fmt.Errorf("name must be at least 2 chars")
	}
	if length > 64 {
		return "", fmt.Errorf("name must be <= 64 chars")
	}
	return clean, nil
}
