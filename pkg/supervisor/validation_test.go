package supervisor

import (
	"strings"
	"testing"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestValidateAppID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		shouldErr bool
		errorType errors.ErrorType
	}{
		{"valid_simple", "backend-1", false, ""},
		{"valid_with_underscore", "api_server", false, ""},
		{"valid_alphanumeric", "app123", false, ""},
		{"empty_id", "", true, errors.ErrorTypeValidation},
		{"too_long", strings.Repeat("a", 65), true, errors.ErrorTypeValidation},
		{"invalid_chars", "app@1", true, errors.ErrorTypeValidation},
		{"invalid_space", "my app", true, errors.ErrorTypeValidation},
		{"invalid_path", "apps/backend", true, errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppID(tt.id)

			if tt.shouldErr {
				assert.Error(t, err)
				var domainErr *errors.DomainError
				assert.ErrorAs(t, err, &domainErr)
				assert.Equal(t, tt.errorType, domainErr.Type)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
