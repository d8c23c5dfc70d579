package gitrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/temirov/glisse/internal/execshell"
)

const (
	gitRevParseSubcommandConstant      = "rev-parse"
	gitVerifyFlagConstant              = "--verify"
	gitSymbolicFullNameFlagConstant    = "--symbolic-full-name"
	gitBranchReferencePrefixConstant   = "refs/heads/"
	gitHeadReferenceConstant           = "HEAD"
	gitCommitPeelSuffixConstant        = "^{commit}"
	gitTagSubcommandConstant           = "tag"
	gitListFlagConstant                = "--list"
	gitDeleteFlagConstant              = "--delete"
	gitCheckoutSubcommandConstant      = "checkout"
	gitMergeSubcommandConstant         = "merge"
	gitNoFastForwardFlagConstant       = "--no-ff"
	gitMessageFlagConstant             = "-m"
	gitAbortFlagConstant               = "--abort"
	gitResetSubcommandConstant         = "reset"
	gitHardFlagConstant                = "--hard"
	gitStatusSubcommandConstant        = "status"
	gitPorcelainFlagConstant           = "--porcelain"
	gitUntrackedFilesNoFlagConstant    = "--untracked-files=no"
	gitEndOfOptionsConstant            = "--"
	lineSeparatorConstant              = "\n"
	commandExecutionFailedExitConstant = -1
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager performs the branch, tag, merge and reset operations of a
// promotion run against a single working copy.
type RepositoryManager struct {
	executor       GitExecutor
	repositoryPath string
}

// NewRepositoryManager constructs a RepositoryManager for the working copy at repositoryPath.
func NewRepositoryManager(executor GitExecutor, repositoryPath string) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	trimmedRepositoryPath := strings.TrimSpace(repositoryPath)
	if len(trimmedRepositoryPath) == 0 {
		return nil, ErrRepositoryPathNotProvided
	}
	return &RepositoryManager{executor: executor, repositoryPath: trimmedRepositoryPath}, nil
}

// CurrentSHA resolves the commit hash the branch points at. The branch is resolved
// through refs/heads so a tag with the same name is never picked up.
func (manager *RepositoryManager) CurrentSHA(executionContext context.Context, branch string) (string, error) {
	output, executionError := manager.run(executionContext, gitRevParseSubcommandConstant, gitVerifyFlagConstant, branchReference(branch)+gitCommitPeelSuffixConstant)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// CurrentBranch returns the short name of the checked out branch, or HEAD when detached.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context) (string, error) {
	headReference, headError := manager.headReference(executionContext)
	if headError != nil {
		return "", headError
	}
	return strings.TrimPrefix(headReference, gitBranchReferencePrefixConstant), nil
}

// headReference returns the full reference HEAD points at, such as refs/heads/main,
// or HEAD when detached. Full names stay unambiguous when a tag shares the branch name.
func (manager *RepositoryManager) headReference(executionContext context.Context) (string, error) {
	output, executionError := manager.run(executionContext, gitRevParseSubcommandConstant, gitSymbolicFullNameFlagConstant, gitHeadReferenceConstant)
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// ListTags returns every tag name in the repository.
func (manager *RepositoryManager) ListTags(executionContext context.Context) ([]string, error) {
	output, executionError := manager.run(executionContext, gitTagSubcommandConstant, gitListFlagConstant)
	if executionError != nil {
		return nil, executionError
	}

	tags := make([]string, 0)
	for _, line := range strings.Split(output, lineSeparatorConstant) {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) > 0 {
			tags = append(tags, trimmedLine)
		}
	}
	return tags, nil
}

// DeleteTag removes a local tag.
func (manager *RepositoryManager) DeleteTag(executionContext context.Context, tag string) error {
	_, executionError := manager.run(executionContext, gitTagSubcommandConstant, gitDeleteFlagConstant, tag)
	return executionError
}

// Checkout switches the working copy to the branch. git resolves a bare name to the
// local branch before any tag of the same name, so HEAD stays attached.
func (manager *RepositoryManager) Checkout(executionContext context.Context, branch string) error {
	_, executionError := manager.run(executionContext, gitCheckoutSubcommandConstant, branch, gitEndOfOptionsConstant)
	return executionError
}

// Merge creates a merge commit of sourceBranch into the checked out branch. A failed
// merge is aborted so the branch stays at its previous commit; when the abort fails
// too, both errors are returned.
func (manager *RepositoryManager) Merge(executionContext context.Context, sourceBranch string, message string) error {
	_, mergeError := manager.run(executionContext, gitMergeSubcommandConstant, gitNoFastForwardFlagConstant, gitMessageFlagConstant, message, branchReference(sourceBranch))
	if mergeError == nil {
		return nil
	}
	if _, abortError := manager.run(executionContext, gitMergeSubcommandConstant, gitAbortFlagConstant); abortError != nil {
		return errors.Join(mergeError, abortError)
	}
	return mergeError
}

// ResetHard moves the branch and working tree to sha. The branch must already be checked out.
func (manager *RepositoryManager) ResetHard(executionContext context.Context, branch string, sha string) error {
	currentReference, headError := manager.headReference(executionContext)
	if headError != nil {
		return headError
	}
	if currentReference != branchReference(branch) {
		return UnexpectedBranchError{Expected: branch, Actual: strings.TrimPrefix(currentReference, gitBranchReferencePrefixConstant)}
	}
	_, executionError := manager.run(executionContext, gitResetSubcommandConstant, gitHardFlagConstant, sha)
	return executionError
}

// IsWorkingTreeClean reports whether tracked files have no staged or unstaged changes.
// Untracked files are ignored.
func (manager *RepositoryManager) IsWorkingTreeClean(executionContext context.Context) (bool, error) {
	output, executionError := manager.run(executionContext, gitStatusSubcommandConstant, gitPorcelainFlagConstant, gitUntrackedFilesNoFlagConstant)
	if executionError != nil {
		return false, executionError
	}
	return len(strings.TrimSpace(output)) == 0, nil
}

func branchReference(branch string) string {
	return gitBranchReferencePrefixConstant + branch
}

func (manager *RepositoryManager) run(executionContext context.Context, arguments ...string) (string, error) {
	result, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: manager.repositoryPath,
	})
	if executionError == nil {
		return result.StandardOutput, nil
	}

	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) {
		return "", RepositoryCommandError{
			Command:       arguments,
			ExitCode:      failedError.Result.ExitCode,
			StandardError: failedError.Result.StandardError,
			Err:           executionError,
		}
	}
	return "", RepositoryCommandError{Command: arguments, ExitCode: commandExecutionFailedExitConstant, Err: executionError}
}
