package supervisor

import (
	"github.com/ctrl-tools/appctrl-go/pkg/errors"
)

// ValidateAppID validates application ID format and constraints
func ValidateAppID(id string) error {
	if id == "" {
		return errors.NewValidationError("app ID cannot be empty", nil)
	}

	if len(id) > 64 {
		return errors.NewValidationError("app ID cannot exceed 64 characters", nil)
	}

	// Check for invalid characters
	for _, char := range id {
		if !isValidIDChar(char) {
			return errors.NewValidationError("app ID contains invalid characters: only letters, numbers, hyphens, and underscores are allowed", nil)
		}
	}

	return nil
}

// Helper function to check if character is valid for ID
func isValidIDChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '_'
}
