package ui

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/glisse/internal/execshell"
)

const (
	commandStartedMessageTemplateConstant          = "Running %s"
	commandCompletedMessageTemplateConstant        = "Completed %s"
	commandFailedExitCodeMessageTemplateConstant   = "%s failed with exit code %d"
	commandExecutionFailureMessageTemplateConstant = "%s failed: %s"
	hookLabelTemplateConstant                      = "hook %q"
	workingDirectorySuffixTemplateConstant         = " (in %s)"
	commandArgumentsJoinSeparatorConstant          = " "
	standardErrorSuffixTemplateConstant            = ": %s"
	unknownFailureMessageConstant                  = "unknown error"
	shellCommandFlagConstant                       = "-c"
)

// CommandEventFormatter builds human-readable messages for command lifecycle events.
type CommandEventFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandEventFormatter) BuildStartedMessage(command execshell.ShellCommand) string {
	return fmt.Sprintf(commandStartedMessageTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildSuccessMessage formats the message describing a command that exited with zero.
func (formatter CommandEventFormatter) BuildSuccessMessage(command execshell.ShellCommand) string {
	return fmt.Sprintf(commandCompletedMessageTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandEventFormatter) BuildFailureMessage(command execshell.ShellCommand, result execshell.ExecutionResult) string {
	baseMessage := fmt.Sprintf(commandFailedExitCodeMessageTemplateConstant, formatter.formatCommandLabel(command), result.ExitCode)
	trimmedStandardError := strings.TrimSpace(result.StandardError)
	if len(trimmedStandardError) == 0 {
		return baseMessage
	}
	return baseMessage + fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandEventFormatter) BuildExecutionFailureMessage(command execshell.ShellCommand, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(commandExecutionFailureMessageTemplateConstant, formatter.formatCommandLabel(command), failureMessage)
}

// BuildHookOutputMessage returns the trimmed standard output of a hook command.
// It reports false for other commands and for hooks that printed nothing.
func (formatter CommandEventFormatter) BuildHookOutputMessage(command execshell.ShellCommand, result execshell.ExecutionResult) (string, bool) {
	if _, isHook := hookCommandText(command); !isHook {
		return "", false
	}
	trimmedOutput := strings.TrimSpace(result.StandardOutput)
	return trimmedOutput, len(trimmedOutput) > 0
}

func (formatter CommandEventFormatter) formatCommandLabel(command execshell.ShellCommand) string {
	var commandLabel string
	if hookCommand, isHook := hookCommandText(command); isHook {
		commandLabel = fmt.Sprintf(hookLabelTemplateConstant, hookCommand)
	} else {
		commandParts := append([]string{string(command.Name)}, command.Details.Arguments...)
		commandLabel = strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
	}

	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return commandLabel
	}
	return commandLabel + fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func hookCommandText(command execshell.ShellCommand) (string, bool) {
	arguments := command.Details.Arguments
	if command.Name != execshell.CommandShell || len(arguments) < 2 || arguments[0] != shellCommandFlagConstant {
		return "", false
	}
	return arguments[1], true
}

// ConsoleCommandEventLogger renders command lifecycle events through a zap logger
// configured for human-readable output. Git plumbing is reported at debug level
// while hooks are reported at info level.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter CommandEventFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: CommandEventFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Log(progressLevel(command), eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted implements execshell.CommandEventObserver. Hook output is
// rendered at info level before the completion message.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if hookOutput, hasOutput := eventLogger.formatter.BuildHookOutputMessage(command, result); hasOutput {
		eventLogger.logger.Info(hookOutput)
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Log(progressLevel(command), eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result))
}

// CommandExecutionFailed implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}

func progressLevel(command execshell.ShellCommand) zapcore.Level {
	if _, isHook := hookCommandText(command); isHook {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}
