package promote

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/glisse/internal/pipeline"
	"github.com/temirov/glisse/internal/utils/flags"
)

const (
	runCommandUseConstant              = "run"
	runCommandShortDescriptionConstant = "Promote every branch of the pipeline into its successor"
	runCommandLongDescriptionConstant  = "run merges each configured branch into the next one in order, runs the hooks registered for every target branch, and records each step so the run can be unwound."
	keepStateFlagNameConstant          = "keep-state"
	keepStateFlagUsageConstant         = "Keep the recorded history after a successful run so it can be unwound"
	dryRunPlanHeaderTemplateConstant   = "Pipeline: %s"
	dryRunTransitionTemplateConstant   = "%s -> %s"
	dryRunHookTemplateConstant         = "  hook: %s"
	dryRunNoMergesMessageConstant      = "Nothing to merge: the pipeline has a single stage."
	runStartedLogMessageConstant       = "pipeline run started"
	runFinishedLogMessageConstant      = "pipeline run finished"
	logFieldPipelineConstant           = "pipeline"
	logFieldStepCountConstant          = "steps"
	logFieldStageCountConstant         = "stages"
)

// RunCommandBuilder assembles the run command.
type RunCommandBuilder struct {
	Dependencies
}

// Build constructs the run command.
func (builder *RunCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           runCommandUseConstant,
		Short:         runCommandShortDescriptionConstant,
		Long:          runCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}

	executionFlags := flags.BindExecutionFlags(command, flags.ExecutionFlagValues{})
	var keepState bool
	flags.AddToggleFlag(command.Flags(), &keepState, keepStateFlagNameConstant, "", false, keepStateFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		return builder.run(command, executionFlags.DryRun, keepState)
	}
	return command, nil
}

func (builder *RunCommandBuilder) run(command *cobra.Command, dryRun bool, keepState bool) error {
	environment, environmentError := builder.resolveEnvironment(command)
	if environmentError != nil {
		return environmentError
	}

	if _, configurationError := requireConfigurationFile(command, environment.logger); configurationError != nil {
		return configurationError
	}

	promotionPipeline, pipelineError := resolvePipeline(environment)
	if pipelineError != nil {
		return pipelineError
	}

	if dryRun {
		return printPlan(environment.output, promotionPipeline)
	}

	inspector, inspectorError := builder.resolveBranchInspector(environment.repositoryPath)
	if inspectorError != nil {
		return inspectorError
	}
	if verificationError := inspector.VerifyBranches(promotionPipeline.Names()); verificationError != nil {
		return verificationError
	}

	engine, engineError := builder.buildEngine(environment, keepState)
	if engineError != nil {
		return engineError
	}

	environment.logger.Info(
		runStartedLogMessageConstant,
		zap.String(logFieldPipelineConstant, promotionPipeline.String()),
		zap.Int(logFieldStageCountConstant, promotionPipeline.Len()),
		zap.String(logFieldRepositoryPathConstant, environment.repositoryPath),
		zap.String(logFieldStateFileConstant, environment.stateStore.Path()),
	)
	result, runError := engine.Run(command.Context(), promotionPipeline)
	if runError != nil {
		return runError
	}
	environment.logger.Info(runFinishedLogMessageConstant, zap.Int(logFieldStepCountConstant, len(result.History)))
	return nil
}

func printPlan(output io.Writer, promotionPipeline pipeline.Pipeline) error {
	if _, writeError := fmt.Fprintf(output, dryRunPlanHeaderTemplateConstant+"\n", promotionPipeline.String()); writeError != nil {
		return writeError
	}
	if promotionPipeline.Len() < 2 {
		_, writeError := fmt.Fprintln(output, dryRunNoMergesMessageConstant)
		return writeError
	}
	for _, transition := range promotionPipeline.Transitions() {
		if _, writeError := fmt.Fprintf(output, dryRunTransitionTemplateConstant+"\n", transition.Source.Name, transition.Target.Name); writeError != nil {
			return writeError
		}
		for _, hookCommand := range transition.Target.Hooks {
			if _, writeError := fmt.Fprintf(output, dryRunHookTemplateConstant+"\n", hookCommand); writeError != nil {
				return writeError
			}
		}
	}
	return nil
}
