package execshell

// CommandEventObserver receives lifecycle notifications for command execution.
type CommandEventObserver interface {
	CommandStarted(command ShellCommand)
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports failures that happen before an exit code is available.
	CommandExecutionFailed(command ShellCommand, failure error)
}
