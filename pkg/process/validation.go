package process

import (
	"strings"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
)

// ValidateExecutionConfig validates a configured execution. The spawn
// path itself accepts anything and lets the shell complain; this check
// is for configuration surfaces, where an empty command is a config
// mistake rather than a runtime condition.
func ValidateExecutionConfig(execution ExecutionConfig) error {
	if strings.TrimSpace(execution.Command) == "" {
		return errors.NewValidationError("command cannot be empty", nil)
	}
	return nil
}
