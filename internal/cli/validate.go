package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/crosscheck/internal/harness"
)

var errValidationFailed = errors.New("scenario validation failed")

// FileValidation holds the validation result of one scenario file.
type FileValidation struct {
	File     string                    `json:"file"`
	Scenario string                    `json:"scenario,omitempty"`
	Valid    bool                      `json:"valid"`
	Errors   []harness.ValidationError `json:"errors,omitempty"`
	Problem  string                    `json:"problem,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file> ...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario YAML files against the scenario schema and step rules.

Every problem in every file is reported, not just the first. No browser is
started.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts.formatter(cmd), rootOpts.logger(cmd.ErrOrStderr()), args)
		},
	}
	return cmd
}

func runValidate(f *OutputFormatter, log *slog.Logger, files []string) error {
	result := ValidationResult{Valid: true}

	for _, file := range files {
		fv := validateFile(file)
		log.Debug("validated", "file", file, "valid", fv.Valid)
		result.Files = append(result.Files, fv)
		result.Valid = result.Valid && fv.Valid
	}

	if f.json() && !result.Valid {
		return f.Fail(ExitFailure, ErrCodeInvalid, errValidationFailed, result)
	}

	err := f.Emit(result, func(w io.Writer) {
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(w, "✓ %s (%s)\n", fv.File, fv.Scenario)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", fv.File)
			if fv.Problem != "" {
				fmt.Fprintf(w, "  %s\n", fv.Problem)
			}
			for _, ve := range fv.Errors {
				fmt.Fprintf(w, "  %s\n", ve.Error())
			}
		}
	})
	if err != nil {
		return err
	}
	if !result.Valid {
		return &ExitError{Code: ExitFailure, Message: errValidationFailed.Error(), Err: errValidationFailed}
	}
	return nil
}

func validateFile(file string) FileValidation {
	fv := FileValidation{File: file}
	sc, err := harness.LoadScenario(file)
	if err == nil {
		fv.Valid = true
		fv.Scenario = sc.Name
		return fv
	}

	var inv *harness.InvalidScenarioError
	if errors.As(err, &inv) {
		fv.Scenario = inv.Scenario
		fv.Errors = inv.Errors
		return fv
	}
	fv.Problem = err.Error()
	return fv
}
