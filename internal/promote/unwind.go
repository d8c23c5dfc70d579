package promote

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	unwindCommandUseConstant              = "unwind"
	unwindCommandAliasConstant            = "undo"
	unwindCommandShortDescriptionConstant = "Reverse the recorded pipeline history"
	unwindCommandLongDescriptionConstant  = "unwind resets every branch touched by the last run to the commit it had before, newest step first, and deletes the tags that step created."
	tagDeletionWarningTemplateConstant    = "Warning: tag cleanup for %s incomplete: %v"
	unwindFinishedLogMessageConstant      = "pipeline unwind finished"
	logFieldRevertedStepsConstant         = "reverted_steps"
	logFieldTagFailuresConstant           = "tag_deletion_failures"
)

// UnwindCommandBuilder assembles the unwind command.
type UnwindCommandBuilder struct {
	Dependencies
}

// Build constructs the unwind command.
func (builder *UnwindCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           unwindCommandUseConstant,
		Aliases:       []string{unwindCommandAliasConstant},
		Short:         unwindCommandShortDescriptionConstant,
		Long:          unwindCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.run,
	}
	return command, nil
}

func (builder *UnwindCommandBuilder) run(command *cobra.Command, arguments []string) error {
	environment, environmentError := builder.resolveEnvironment(command)
	if environmentError != nil {
		return environmentError
	}

	engine, engineError := builder.buildEngine(environment, false)
	if engineError != nil {
		return engineError
	}

	result, unwindError := engine.Unwind(command.Context())
	for _, failure := range result.TagDeletionFailures {
		fmt.Fprintf(environment.output, tagDeletionWarningTemplateConstant+"\n", failure.TargetBranch, failure.Err)
	}
	if unwindError != nil {
		return unwindError
	}

	environment.logger.Info(
		unwindFinishedLogMessageConstant,
		zap.Int(logFieldRevertedStepsConstant, len(result.RevertedSteps)),
		zap.Int(logFieldTagFailuresConstant, len(result.TagDeletionFailures)),
		zap.String(logFieldStateFileConstant, environment.stateStore.Path()),
	)
	return nil
}
