package execshell

import (
	"fmt"
	"strings"
)

const (
	commandArgumentsSeparatorConstant       = " "
	commandLabelWithPurposeTemplateConstant = "%s (%s)"
	failureMessageTemplateConstant          = "%s failed with exit code %d"
	failureStandardErrorTemplateConstant    = ": %s"
	gitSubcommandRevParseConstant           = "rev-parse"
	gitSubcommandTagConstant                = "tag"
	gitSubcommandCheckoutConstant           = "checkout"
	gitSubcommandMergeConstant              = "merge"
	gitSubcommandResetConstant              = "reset"
	gitSubcommandStatusConstant             = "status"
	gitFlagDeleteConstant                   = "--delete"
	gitFlagDeleteShortConstant              = "-d"
	gitFlagAbortConstant                    = "--abort"
	gitFlagHardConstant                     = "--hard"
	shellFlagCommandConstant                = "-c"
	purposeResolveRevisionTemplateConstant  = "resolve %s"
	purposeListTagsConstant                 = "list tags"
	purposeDeleteTagTemplateConstant        = "delete tag %s"
	purposeCheckoutTemplateConstant         = "checkout %s"
	purposeMergeTemplateConstant            = "merge %s"
	purposeAbortMergeConstant               = "abort merge"
	purposeResetTemplateConstant            = "reset to %s"
	purposeInspectWorkingTreeConstant       = "inspect working tree"
	purposeRunHookTemplateConstant          = "hook %s"
)

// CommandMessageFormatter describes commands in terms of what they do to the repository.
type CommandMessageFormatter struct{}

// DescribePurpose returns a short description of the command intent, or an empty string when unknown.
func (formatter CommandMessageFormatter) DescribePurpose(command ShellCommand) string {
	arguments := command.Details.Arguments
	switch command.Name {
	case CommandShell:
		if len(arguments) >= 2 && arguments[0] == shellFlagCommandConstant {
			return fmt.Sprintf(purposeRunHookTemplateConstant, arguments[1])
		}
		return ""
	case CommandGit:
		return formatter.describeGitPurpose(arguments)
	default:
		return ""
	}
}

// BuildFailureMessage formats a non-zero exit including trimmed standard error output.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	message := fmt.Sprintf(failureMessageTemplateConstant, formatter.formatCommandLabel(command), result.ExitCode)
	trimmedStandardError := strings.TrimSpace(result.StandardError)
	if len(trimmedStandardError) == 0 {
		return message
	}
	return message + fmt.Sprintf(failureStandardErrorTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := append([]string{string(command.Name)}, command.Details.Arguments...)
	commandLabel := strings.Join(commandParts, commandArgumentsSeparatorConstant)
	purpose := formatter.DescribePurpose(command)
	if len(purpose) == 0 || command.Name == CommandShell {
		return commandLabel
	}
	return fmt.Sprintf(commandLabelWithPurposeTemplateConstant, commandLabel, purpose)
}

func (formatter CommandMessageFormatter) describeGitPurpose(arguments []string) string {
	if len(arguments) == 0 {
		return ""
	}
	lastArgument := arguments[len(arguments)-1]
	switch arguments[0] {
	case gitSubcommandRevParseConstant:
		return fmt.Sprintf(purposeResolveRevisionTemplateConstant, lastArgument)
	case gitSubcommandTagConstant:
		if containsArgument(arguments, gitFlagDeleteConstant) || containsArgument(arguments, gitFlagDeleteShortConstant) {
			return fmt.Sprintf(purposeDeleteTagTemplateConstant, lastArgument)
		}
		return purposeListTagsConstant
	case gitSubcommandCheckoutConstant:
		return fmt.Sprintf(purposeCheckoutTemplateConstant, firstPositionalArgument(arguments))
	case gitSubcommandMergeConstant:
		if containsArgument(arguments, gitFlagAbortConstant) {
			return purposeAbortMergeConstant
		}
		return fmt.Sprintf(purposeMergeTemplateConstant, firstPositionalArgument(arguments))
	case gitSubcommandResetConstant:
		if containsArgument(arguments, gitFlagHardConstant) {
			return fmt.Sprintf(purposeResetTemplateConstant, lastArgument)
		}
		return ""
	case gitSubcommandStatusConstant:
		return purposeInspectWorkingTreeConstant
	default:
		return ""
	}
}

// firstPositionalArgument returns the first argument after the subcommand that is
// neither an option nor the value of -m.
func firstPositionalArgument(arguments []string) string {
	skipNext := false
	for _, argument := range arguments[1:] {
		if skipNext {
			skipNext = false
			continue
		}
		if argument == "-m" {
			skipNext = true
			continue
		}
		if strings.HasPrefix(argument, "-") {
			continue
		}
		return argument
	}
	return ""
}

func containsArgument(arguments []string, expected string) bool {
	for _, argument := range arguments {
		if argument == expected {
			return true
		}
	}
	return false
}
