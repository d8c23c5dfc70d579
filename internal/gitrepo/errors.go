package gitrepo

import (
	"errors"
	"fmt"
	"strings"
)

const (
	repositoryCommandErrorTemplateConstant            = "git %s failed with exit code %d"
	repositoryCommandErrorStandardErrorSuffixConstant = ": %s"
	repositoryCommandExecutionErrorTemplateConstant   = "git %s could not run: %v"
	missingBranchesErrorTemplateConstant              = "branches do not exist: %s"
	unexpectedBranchErrorTemplateConstant             = "expected branch %s to be checked out, found %s"
	branchListSeparatorConstant                       = ", "
	commandArgumentSeparatorConstant                  = " "
	gitExecutorNotConfiguredMessageConstant           = "repository manager requires a git executor"
	repositoryPathNotProvidedMessageConstant          = "repository path must be provided"
)

// ErrGitExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorNotConfiguredMessageConstant)

// ErrRepositoryPathNotProvided indicates an empty repository path.
var ErrRepositoryPathNotProvided = errors.New(repositoryPathNotProvidedMessageConstant)

// RepositoryCommandError reports a git invocation that failed. ExitCode is -1 when
// git could not be started at all, in which case Err holds the cause.
type RepositoryCommandError struct {
	Command       []string
	ExitCode      int
	StandardError string
	Err           error
}

// Error describes the failing git command.
func (commandError RepositoryCommandError) Error() string {
	commandText := strings.Join(commandError.Command, commandArgumentSeparatorConstant)
	if commandError.ExitCode < 0 && commandError.Err != nil {
		return fmt.Sprintf(repositoryCommandExecutionErrorTemplateConstant, commandText, commandError.Err)
	}
	message := fmt.Sprintf(repositoryCommandErrorTemplateConstant, commandText, commandError.ExitCode)
	trimmedStandardError := strings.TrimSpace(commandError.StandardError)
	if len(trimmedStandardError) == 0 {
		return message
	}
	return message + fmt.Sprintf(repositoryCommandErrorStandardErrorSuffixConstant, trimmedStandardError)
}

// Unwrap exposes the underlying execution error.
func (commandError RepositoryCommandError) Unwrap() error {
	return commandError.Err
}

// MissingBranchesError lists configured branches absent from the repository.
type MissingBranchesError struct {
	Branches []string
}

// Error lists the missing branches.
func (missingError MissingBranchesError) Error() string {
	return fmt.Sprintf(missingBranchesErrorTemplateConstant, strings.Join(missingError.Branches, branchListSeparatorConstant))
}

// UnexpectedBranchError reports that HEAD is not on the branch an operation requires.
type UnexpectedBranchError struct {
	Expected string
	Actual   string
}

// Error describes the mismatch.
func (branchError UnexpectedBranchError) Error() string {
	return fmt.Sprintf(unexpectedBranchErrorTemplateConstant, branchError.Expected, branchError.Actual)
}
