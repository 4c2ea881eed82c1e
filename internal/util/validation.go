package util

import (
	"errors"
	"fmt"
	"regexp"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateUUID validates UUID format (basic check)
func ValidateUUID(id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	if len(id) != 36 || !uuidPattern.MatchString(id) {
		return errors.New("invalid id format")
	}
	return nil
}

// ValidateString validates a string length
func ValidateString(value, fieldName string, minLen, maxLen int) error {
	if minLen > 0 && len(value) < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if maxLen > 0 && len(value) > maxLen {
		return fmt.Errorf("%s must be at most %d characters", fieldName, maxLen)
	}
	return nil
}

// ValidateRange validates a numeric range
func ValidateRange(value int, fieldName string, min, max int) error {
	if value < min {
		return fmt.Errorf("%s must be at least %d", fieldName, min)
	}
	if value > max {
		return fmt.Errorf("%s must be at most %d", fieldName, max)
	}
	return nil
}

// ValidatePaginationLimit validates pagination limit
func ValidatePaginationLimit(limit int64) error {
	if limit < 1 {
		return errors.New("limit must be at least 1")
	}
	if limit > 1000 {
		return errors.New("limit must be at most 1000")
	}
	return nil
}

// ValidatePaginationOffset validates pagination offset
func ValidatePaginationOffset(offset int64) error {
	if offset < 0 {
		return errors.New("offset must be non-negative")
	}
	return nil
}
