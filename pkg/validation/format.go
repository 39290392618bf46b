// Package validation provides common validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/budget-optimizer/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	switch format {
	case constants.OutputFormatJSON, constants.OutputFormatPretty, constants.OutputFormatCSV:
		return nil
	}
	return fmt.Errorf("expected output format of %s, %s or %s, got %s",
		constants.OutputFormatJSON, constants.OutputFormatPretty, constants.OutputFormatCSV, format)
}
