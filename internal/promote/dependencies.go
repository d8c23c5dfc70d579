package promote

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/glisse/internal/execshell"
	"github.com/temirov/glisse/internal/gitrepo"
	"github.com/temirov/glisse/internal/pipeline"
	"github.com/temirov/glisse/internal/ui"
	"github.com/temirov/glisse/internal/utils"
	pathutils "github.com/temirov/glisse/internal/utils/path"
)

const (
	currentDirectoryConstant                = "."
	repositoryPathResolutionErrorTemplate   = "unable to resolve repository path %s: %w"
	executorCreationErrorTemplateConstant   = "unable to construct command executor: %w"
	repositoryManagerCreationErrorTemplate  = "unable to construct repository manager: %w"
	hookRunnerCreationErrorTemplateConstant = "unable to construct hook runner: %w"
	branchInspectorCreationErrorTemplate    = "unable to inspect repository %s: %w"
	engineCreationErrorTemplateConstant     = "unable to construct pipeline engine: %w"
	configurationMissingLogMessageConstant  = "configuration file not found"
	unusedHookBranchesLogMessageConstant    = "hooks configured for branches outside the pipeline order"
	logFieldConfigurationFileConstant       = "config_file"
	logFieldBranchesConstant                = "branches"
	logFieldRepositoryPathConstant          = "repository"
	logFieldStateFileConstant               = "state_file"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the merged command configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandExecutor runs git and shell commands.
type CommandExecutor interface {
	gitrepo.GitExecutor
	pipeline.ShellExecutor
}

// BranchInspector answers read-only questions about repository branches.
type BranchInspector interface {
	CurrentBranch() (string, error)
	BranchRevision(branchName string) (string, error)
	VerifyBranches(branchNames []string) error
}

// BranchInspectorProvider opens a BranchInspector for the repository path.
type BranchInspectorProvider func(repositoryPath string) (BranchInspector, error)

// Dependencies enumerates the collaborators shared by the promote commands. Nil
// collaborators fall back to implementations backed by git and the system shell.
type Dependencies struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        ConfigurationProvider
	Executor                     CommandExecutor
	Repository                   pipeline.RepositoryAdapter
	HookRunner                   pipeline.HookRunner
	BranchInspectorProvider      BranchInspectorProvider
}

func (dependencies Dependencies) resolveLogger() *zap.Logger {
	if dependencies.LoggerProvider != nil {
		if logger := dependencies.LoggerProvider(); logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

func (dependencies Dependencies) resolveConfiguration() CommandConfiguration {
	if dependencies.ConfigurationProvider == nil {
		return CommandConfiguration{StateFile: pipeline.DefaultStateFileName}
	}
	configuration := dependencies.ConfigurationProvider()
	configuration.StateFile = strings.TrimSpace(configuration.StateFile)
	if len(configuration.StateFile) == 0 {
		configuration.StateFile = pipeline.DefaultStateFileName
	}
	return configuration
}

func (dependencies Dependencies) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if dependencies.Executor != nil {
		return dependencies.Executor, nil
	}

	var observers []execshell.CommandEventObserver
	if dependencies.HumanReadableLoggingProvider != nil && dependencies.HumanReadableLoggingProvider() {
		observers = append(observers, ui.NewConsoleCommandEventLogger(logger))
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), observers...)
	if creationError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, creationError)
	}
	return shellExecutor, nil
}

func (dependencies Dependencies) resolveBranchInspector(repositoryPath string) (BranchInspector, error) {
	if dependencies.BranchInspectorProvider != nil {
		return dependencies.BranchInspectorProvider(repositoryPath)
	}
	inspector, openError := gitrepo.OpenInspector(repositoryPath)
	if openError != nil {
		return nil, fmt.Errorf(branchInspectorCreationErrorTemplate, repositoryPath, openError)
	}
	return inspector, nil
}

// commandEnvironment carries the collaborators resolved for one command invocation.
type commandEnvironment struct {
	logger         *zap.Logger
	configuration  CommandConfiguration
	repositoryPath string
	stateStore     *pipeline.StateStore
	output         io.Writer
}

func (dependencies Dependencies) resolveEnvironment(command *cobra.Command) (commandEnvironment, error) {
	logger := dependencies.resolveLogger()
	configuration := dependencies.resolveConfiguration()

	repositoryPath, pathError := resolveRepositoryPath(command)
	if pathError != nil {
		return commandEnvironment{}, pathError
	}

	stateFilePath := pathutils.NewHomeExpander().ResolveAgainst(repositoryPath, configuration.StateFile)
	return commandEnvironment{
		logger:         logger,
		configuration:  configuration,
		repositoryPath: repositoryPath,
		stateStore:     pipeline.NewStateStore(stateFilePath),
		output:         utils.NewFlushingWriter(command.OutOrStdout()),
	}, nil
}

func (dependencies Dependencies) buildEngine(environment commandEnvironment, retainCompletedState bool) (*pipeline.Engine, error) {
	repository := dependencies.Repository
	hookRunner := dependencies.HookRunner

	if repository == nil || hookRunner == nil {
		executor, executorError := dependencies.resolveExecutor(environment.logger)
		if executorError != nil {
			return nil, executorError
		}
		if repository == nil {
			repositoryManager, managerError := gitrepo.NewRepositoryManager(executor, environment.repositoryPath)
			if managerError != nil {
				return nil, fmt.Errorf(repositoryManagerCreationErrorTemplate, managerError)
			}
			repository = repositoryManager
		}
		if hookRunner == nil {
			shellHookRunner, hookRunnerError := pipeline.NewShellHookRunner(executor, environment.repositoryPath)
			if hookRunnerError != nil {
				return nil, fmt.Errorf(hookRunnerCreationErrorTemplateConstant, hookRunnerError)
			}
			hookRunner = shellHookRunner
		}
	}

	engine, engineError := pipeline.NewEngine(pipeline.EngineDependencies{
		Repository: repository,
		StateStore: environment.stateStore,
		HookRunner: hookRunner,
		Logger:     environment.logger,
		Output:     environment.output,

		RetainCompletedState: retainCompletedState,
	})
	if engineError != nil {
		return nil, fmt.Errorf(engineCreationErrorTemplateConstant, engineError)
	}
	return engine, nil
}

// requireConfigurationFile fails when no configuration file was loaded.
func requireConfigurationFile(command *cobra.Command, logger *zap.Logger) (string, error) {
	configurationFilePath, available := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context())
	if !available || len(strings.TrimSpace(configurationFilePath)) == 0 {
		logger.Error(configurationMissingLogMessageConstant, zap.String(logFieldConfigurationFileConstant, DefaultConfigurationFileName))
		return "", ConfigurationLoadingError{Path: DefaultConfigurationFileName}
	}
	return configurationFilePath, nil
}

func resolvePipeline(environment commandEnvironment) (pipeline.Pipeline, error) {
	promotionPipeline, buildError := environment.configuration.BuildPipeline()
	if buildError != nil {
		return pipeline.Pipeline{}, buildError
	}
	if unusedBranches := environment.configuration.HookBranchesOutsideOrder(); len(unusedBranches) > 0 {
		environment.logger.Warn(unusedHookBranchesLogMessageConstant, zap.Strings(logFieldBranchesConstant, unusedBranches))
	}
	return promotionPipeline, nil
}

func resolveRepositoryPath(command *cobra.Command) (string, error) {
	repositoryPath := currentDirectoryConstant
	if command != nil {
		if contextPath, available := utils.NewCommandContextAccessor().RepositoryPath(command.Context()); available && len(strings.TrimSpace(contextPath)) > 0 {
			repositoryPath = pathutils.NewHomeExpander().Expand(strings.TrimSpace(contextPath))
		}
	}
	absolutePath, absoluteError := filepath.Abs(repositoryPath)
	if absoluteError != nil {
		return "", fmt.Errorf(repositoryPathResolutionErrorTemplate, repositoryPath, absoluteError)
	}
	return absolutePath, nil
}
