// Package flags provides helpers for binding the shared glisse flags to Cobra commands.
package flags

import "github.com/spf13/cobra"

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Print the planned merges and hooks without touching the repository"
	// RepositoryFlagName exposes the repository directory flag name.
	RepositoryFlagName = "repository"
	// RepositoryFlagShorthand provides the shorthand for the repository flag.
	RepositoryFlagShorthand = "C"
	// RepositoryFlagUsage describes the repository directory flag purpose.
	RepositoryFlagUsage = "Repository working directory (defaults to the current directory)"
	// StateFileFlagName exposes the state file flag name.
	StateFileFlagName = "state-file"
	// StateFileFlagUsage describes the state file flag purpose.
	StateFileFlagUsage = "Path of the pipeline state file, relative to the repository directory"
	// FormatFlagName exposes the output format flag name.
	FormatFlagName = "format"
)

// ExecutionFlagValues stores execution flag values.
type ExecutionFlagValues struct {
	DryRun bool
}

// BindExecutionFlags attaches the dry-run toggle to the command's local flag set.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionFlagValues) *ExecutionFlagValues {
	values := defaults
	if command == nil {
		return &values
	}
	AddToggleFlag(command.Flags(), &values.DryRun, DryRunFlagName, "", defaults.DryRun, DryRunFlagUsage)
	return &values
}

// RepositoryFlagValues stores repository context flag values.
type RepositoryFlagValues struct {
	Path      string
	StateFile string
}

// BindRepositoryFlags attaches the repository and state file flags with persistent scope.
func BindRepositoryFlags(command *cobra.Command, defaults RepositoryFlagValues) *RepositoryFlagValues {
	values := defaults
	if command == nil {
		return &values
	}

	persistentFlagSet := command.PersistentFlags()
	if persistentFlagSet.Lookup(RepositoryFlagName) == nil {
		persistentFlagSet.StringVarP(&values.Path, RepositoryFlagName, RepositoryFlagShorthand, defaults.Path, RepositoryFlagUsage)
	}
	if persistentFlagSet.Lookup(StateFileFlagName) == nil {
		persistentFlagSet.StringVar(&values.StateFile, StateFileFlagName, defaults.StateFile, StateFileFlagUsage)
	}
	return &values
}
