package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/glisse/internal/pipeline"
	"github.com/temirov/glisse/internal/promote"
	"github.com/temirov/glisse/internal/utils"
	"github.com/temirov/glisse/internal/utils/flags"
	pathutils "github.com/temirov/glisse/internal/utils/path"
)

const (
	applicationNameConstant                 = "glisse"
	applicationShortDescriptionConstant     = "Promote branches through an ordered merge pipeline"
	applicationLongDescriptionConstant      = "glisse merges each branch of a configured promotion order into the next, runs post-merge hooks, and records every step so the whole run can be unwound."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (TOML, YAML, or JSON). Defaults to pyproject.toml in the repository."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	configurationKeyDelimiterConstant       = "::"
	glisseConfigurationKeyConstant          = "glisse"
	glisseLogLevelConfigKeyConstant         = glisseConfigurationKeyConstant + configurationKeyDelimiterConstant + "log_level"
	glisseLogFormatConfigKeyConstant        = glisseConfigurationKeyConstant + configurationKeyDelimiterConstant + "log_format"
	glisseStateFileConfigKeyConstant        = glisseConfigurationKeyConstant + configurationKeyDelimiterConstant + "state_file"
	environmentPrefixConstant               = "GLISSE"
	configurationNameConstant               = "pyproject"
	configurationTypeConstant               = "toml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	repositoryPathFieldConstant             = "repository"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "glisse CLI executed"
	rootCommandDebugMessageConstant         = "glisse CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultRepositoryPathConstant           = "."
	developmentVersionConstant              = "(devel)"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Glisse GlisseConfiguration `mapstructure:"glisse"`
}

// GlisseConfiguration mirrors the [glisse] table. Every key that is not a known
// setting is a per-branch table and lands in Branches.
type GlisseConfiguration struct {
	LogLevel  string         `mapstructure:"log_level"`
	LogFormat string         `mapstructure:"log_format"`
	LogFile   string         `mapstructure:"log_file"`
	StateFile string         `mapstructure:"state_file"`
	Order     []string       `mapstructure:"order"`
	Branches  map[string]any `mapstructure:",remain"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	loggerOutputs          utils.LoggerOutputs
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	repositoryFlagValues   *flags.RepositoryFlagValues
	homeExpander           *pathutils.HomeExpander
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		homeExpander:           pathutils.NewHomeExpander(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       resolveVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	flags.AddChoiceFlag(
		persistentFlags,
		&application.logFormatFlagValue,
		logFormatFlagNameConstant,
		string(utils.LogFormatConsole),
		[]string{string(utils.LogFormatConsole), string(utils.LogFormatStructured)},
		logFormatFlagUsageConstant,
	)
	application.repositoryFlagValues = flags.BindRepositoryFlags(cobraCommand, flags.RepositoryFlagValues{})

	commandDependencies := promote.Dependencies{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.promoteConfiguration,
	}

	runBuilder := promote.RunCommandBuilder{Dependencies: commandDependencies}
	runCommand, runBuildError := runBuilder.Build()
	if runBuildError == nil {
		cobraCommand.AddCommand(runCommand)
	}

	unwindBuilder := promote.UnwindCommandBuilder{Dependencies: commandDependencies}
	unwindCommand, unwindBuildError := unwindBuilder.Build()
	if unwindBuildError == nil {
		cobraCommand.AddCommand(unwindCommand)
	}

	showBuilder := promote.ShowCommandBuilder{Dependencies: commandDependencies}
	showCommand, showBuildError := showBuilder.Build()
	if showBuildError == nil {
		cobraCommand.AddCommand(showCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) newConfigurationLoader(repositoryPath string) *utils.ConfigurationLoader {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{repositoryPath},
	)
	configurationLoader.SetKeyDelimiter(configurationKeyDelimiterConstant)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	return configurationLoader
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	repositoryPath := defaultRepositoryPathConstant
	if trimmedPath := strings.TrimSpace(application.repositoryFlagValues.Path); len(trimmedPath) > 0 {
		repositoryPath = application.homeExpander.Expand(trimmedPath)
	}

	defaultValues := map[string]any{
		glisseLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		glisseLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
		glisseStateFileConfigKeyConstant: pipeline.DefaultStateFileName,
	}

	configurationFilePath := application.homeExpander.Expand(strings.TrimSpace(application.configurationFilePath))
	loadedConfiguration, loadError := application.newConfigurationLoader(repositoryPath).LoadConfiguration(configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Glisse.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Glisse.LogFormat = application.logFormatFlagValue
	}

	if application.persistentFlagChanged(command, flags.StateFileFlagName) {
		application.configuration.Glisse.StateFile = application.repositoryFlagValues.StateFile
	}

	logFilePath := strings.TrimSpace(application.configuration.Glisse.LogFile)
	if len(logFilePath) > 0 {
		logFilePath = application.homeExpander.ResolveAgainst(repositoryPath, logFilePath)
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Glisse.LogLevel),
		utils.LogFormat(application.configuration.Glisse.LogFormat),
		logFilePath,
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.loggerOutputs = loggerOutputs
	application.logger = loggerOutputs.DiagnosticLogger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Glisse.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Glisse.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(repositoryPathFieldConstant, repositoryPath),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithRepositoryPath(updatedContext, repositoryPath)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) promoteConfiguration() promote.CommandConfiguration {
	return promote.CommandConfiguration{
		Order:     application.configuration.Glisse.Order,
		StateFile: application.configuration.Glisse.StateFile,
		Branches:  application.configuration.Glisse.Branches,
	}
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Glisse.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Debug(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	return command.Help()
}

func (application *Application) flushLogger() error {
	syncError := application.syncLoggerInstance(application.logger)
	closeError := application.loggerOutputs.Close()
	if syncError != nil {
		return syncError
	}
	return closeError
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func resolveVersion() string {
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 {
		return developmentVersionConstant
	}
	return buildInformation.Main.Version
}
