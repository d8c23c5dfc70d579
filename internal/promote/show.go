package promote

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/glisse/internal/pipeline"
	"github.com/temirov/glisse/internal/utils/flags"
)

const (
	showCommandUseConstant              = "show"
	showCommandShortDescriptionConstant = "Describe the configured pipeline and any recorded history"
	showCommandLongDescriptionConstant  = "show prints the configuration file in use, the promotion order with its hooks, the current branch and stage heads, and the history recorded by an unfinished run."
	showFormatUsageConstant             = "Output format"
	showFormatTextConstant              = "text"
	showFormatYAMLConstant              = "yaml"
	showConfigurationTemplateConstant   = "Configuration: %s\n"
	showPipelineTemplateConstant        = "Pipeline: %s\n"
	showHooksHeaderConstant             = "Hooks:"
	showHookTemplateConstant            = "  %s: %s\n"
	showCurrentBranchTemplateConstant   = "Current branch: %s\n"
	showStageHeadsHeaderConstant        = "Stage heads:"
	showStageHeadTemplateConstant       = "  %s %s\n"
	showStateFileTemplateConstant       = "State file: %s"
	showStateFileAbsentSuffixConstant   = " (absent)"
	showNoHistoryMessageConstant        = "History: none"
	showHistoryHeaderConstant           = "History:"
	showHistoryStepTemplateConstant     = "  %d. %s %s %s"
	showHistoryTagsTemplateConstant     = " tags: %s"
	showTagSeparatorConstant            = ", "
	showDetachedHeadValueConstant       = "(detached)"
	showMissingBranchValueConstant      = "(missing)"
	showYAMLIndentConstant              = 2
	shortRevisionLengthConstant         = 12
	yamlEncodingErrorTemplateConstant   = "unable to encode report: %w"
)

// ShowCommandBuilder assembles the show command.
type ShowCommandBuilder struct {
	Dependencies
}

type showReport struct {
	ConfigurationFile string               `yaml:"configuration_file"`
	Order             []string             `yaml:"order"`
	Hooks             []stageHooksReport   `yaml:"hooks,omitempty"`
	CurrentBranch     string               `yaml:"current_branch"`
	StageHeads        []stageHeadReport    `yaml:"stage_heads"`
	StateFile         string               `yaml:"state_file"`
	StateFilePresent  bool                 `yaml:"state_file_present"`
	History           []pipeline.MergeStep `yaml:"history"`
}

type stageHooksReport struct {
	Branch string   `yaml:"branch"`
	Hooks  []string `yaml:"hooks"`
}

type stageHeadReport struct {
	Branch   string `yaml:"branch"`
	Revision string `yaml:"revision"`
}

// Build constructs the show command.
func (builder *ShowCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           showCommandUseConstant,
		Short:         showCommandShortDescriptionConstant,
		Long:          showCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}

	outputFormat := showFormatTextConstant
	flags.AddChoiceFlag(command.Flags(), &outputFormat, flags.FormatFlagName, showFormatTextConstant, []string{showFormatTextConstant, showFormatYAMLConstant}, showFormatUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		return builder.run(command, outputFormat)
	}
	return command, nil
}

func (builder *ShowCommandBuilder) run(command *cobra.Command, outputFormat string) error {
	environment, environmentError := builder.resolveEnvironment(command)
	if environmentError != nil {
		return environmentError
	}

	configurationFilePath, configurationError := requireConfigurationFile(command, environment.logger)
	if configurationError != nil {
		return configurationError
	}

	promotionPipeline, pipelineError := resolvePipeline(environment)
	if pipelineError != nil {
		return pipelineError
	}

	stateFilePresent, existsError := environment.stateStore.Exists()
	if existsError != nil {
		return existsError
	}
	state, loadError := environment.stateStore.Load()
	if loadError != nil {
		return loadError
	}

	report := showReport{
		ConfigurationFile: configurationFilePath,
		Order:             promotionPipeline.Names(),
		StageHeads:        []stageHeadReport{},
		StateFile:         environment.stateStore.Path(),
		StateFilePresent:  stateFilePresent,
		History:           state.History,
	}
	for _, stage := range promotionPipeline.Stages() {
		if len(stage.Hooks) > 0 {
			report.Hooks = append(report.Hooks, stageHooksReport{Branch: stage.Name, Hooks: stage.Hooks})
		}
	}

	inspector, inspectorError := builder.resolveBranchInspector(environment.repositoryPath)
	if inspectorError != nil {
		return inspectorError
	}
	currentBranch, branchError := inspector.CurrentBranch()
	if branchError != nil {
		currentBranch = showDetachedHeadValueConstant
	}
	report.CurrentBranch = currentBranch
	for _, branchName := range promotionPipeline.Names() {
		revision, revisionError := inspector.BranchRevision(branchName)
		if revisionError != nil {
			revision = showMissingBranchValueConstant
		}
		report.StageHeads = append(report.StageHeads, stageHeadReport{Branch: branchName, Revision: revision})
	}

	if strings.EqualFold(outputFormat, showFormatYAMLConstant) {
		return writeYAMLReport(environment.output, report)
	}
	return writeTextReport(environment.output, report, promotionPipeline.String())
}

func writeYAMLReport(output io.Writer, report showReport) error {
	encoder := yaml.NewEncoder(output)
	encoder.SetIndent(showYAMLIndentConstant)
	if encodeError := encoder.Encode(report); encodeError != nil {
		return fmt.Errorf(yamlEncodingErrorTemplateConstant, encodeError)
	}
	return encoder.Close()
}

func writeTextReport(output io.Writer, report showReport, pipelineDescription string) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, showConfigurationTemplateConstant, report.ConfigurationFile)
	fmt.Fprintf(&builder, showPipelineTemplateConstant, pipelineDescription)
	if len(report.Hooks) > 0 {
		builder.WriteString(showHooksHeaderConstant + "\n")
		for _, stageHooks := range report.Hooks {
			for _, hookCommand := range stageHooks.Hooks {
				fmt.Fprintf(&builder, showHookTemplateConstant, stageHooks.Branch, hookCommand)
			}
		}
	}
	fmt.Fprintf(&builder, showCurrentBranchTemplateConstant, report.CurrentBranch)
	builder.WriteString(showStageHeadsHeaderConstant + "\n")
	for _, stageHead := range report.StageHeads {
		fmt.Fprintf(&builder, showStageHeadTemplateConstant, stageHead.Branch, shortRevision(stageHead.Revision))
	}
	fmt.Fprintf(&builder, showStateFileTemplateConstant, report.StateFile)
	if !report.StateFilePresent {
		builder.WriteString(showStateFileAbsentSuffixConstant)
	}
	builder.WriteString("\n")
	if len(report.History) == 0 {
		builder.WriteString(showNoHistoryMessageConstant + "\n")
	} else {
		builder.WriteString(showHistoryHeaderConstant + "\n")
		for stepIndex, step := range report.History {
			fmt.Fprintf(&builder, showHistoryStepTemplateConstant, stepIndex+1, step.TargetBranch, shortRevision(step.OriginalSHA), step.Status)
			if len(step.TagsCreated) > 0 {
				fmt.Fprintf(&builder, showHistoryTagsTemplateConstant, strings.Join(step.TagsCreated, showTagSeparatorConstant))
			}
			builder.WriteString("\n")
		}
	}
	_, writeError := io.WriteString(output, builder.String())
	return writeError
}

func shortRevision(revision string) string {
	if len(revision) <= shortRevisionLengthConstant {
		return revision
	}
	return revision[:shortRevisionLengthConstant]
}
